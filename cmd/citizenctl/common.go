package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/paxgov/citizenry/internal/citizen"
	"github.com/paxgov/citizenry/internal/config"
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/metrics"
	"github.com/paxgov/citizenry/internal/transport"
)

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()
}

// newCitizen reads a configuration file and constructs a fresh,
// unbootstrapped citizen bound to tr.
func newCitizen(f config.File, tr transport.Transport, logger zerolog.Logger) *citizen.Citizen {
	return citizen.New(f.Citizen(), tr, logger)
}

// newMetrics builds a private registry for f's citizen; run wires one
// per cluster member so reachability/collapse counters stay separable.
func newMetrics(f config.File) *metrics.Registry {
	return metrics.New(prometheus.NewRegistry(), f.Republic, government.ID(f.Self))
}

func parseProperties(pairs []string) (government.Properties, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(government.Properties, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.Errorf("citizenctl: malformed --prop %q, want key=value", kv)
		}
		props[k] = v
	}
	return props, nil
}
