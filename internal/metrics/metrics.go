// Package metrics exposes a small Prometheus registry for a citizen:
// log position, truncation floor, per-peer reachability, and collapse
// frequency. A nil *Registry is valid and every method on it is a
// no-op, so the core never has to special-case "metrics disabled."
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paxgov/citizenry/internal/government"
)

// Registry owns the gauges and counters one citizen publishes.
type Registry struct {
	headGovernment    prometheus.Gauge
	headRound         prometheus.Gauge
	trailerGovernment prometheus.Gauge
	trailerRound      prometheus.Gauge
	reachable         *prometheus.GaugeVec
	collapses         prometheus.Counter
}

// New registers a fresh set of collectors for self under reg, tagging
// every metric with the citizen's id and republic name.
func New(reg prometheus.Registerer, republic string, self government.ID) *Registry {
	labels := prometheus.Labels{"republic": republic, "citizen": string(self)}
	m := &Registry{
		headGovernment: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citizenry", Name: "log_head_government", Help: "Government number of the log head promise.",
			ConstLabels: labels,
		}),
		headRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citizenry", Name: "log_head_round", Help: "Round number of the log head promise.",
			ConstLabels: labels,
		}),
		trailerGovernment: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citizenry", Name: "log_trailer_government", Help: "Government number of the log trailer promise.",
			ConstLabels: labels,
		}),
		trailerRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citizenry", Name: "log_trailer_round", Help: "Round number of the log trailer promise.",
			ConstLabels: labels,
		}),
		reachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "citizenry", Name: "peer_reachable", Help: "1 if the peer answered its most recent request, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"peer"}),
		collapses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citizenry", Name: "collapses_total", Help: "Number of times this citizen's fast path collapsed into recovery.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.headGovernment, m.headRound, m.trailerGovernment, m.trailerRound, m.reachable, m.collapses)
	return m
}

// SetHead records the log head promise.
func (m *Registry) SetHead(gov, round uint64) {
	if m == nil {
		return
	}
	m.headGovernment.Set(float64(gov))
	m.headRound.Set(float64(round))
}

// SetTrailer records the log trailer promise.
func (m *Registry) SetTrailer(gov, round uint64) {
	if m == nil {
		return
	}
	m.trailerGovernment.Set(float64(gov))
	m.trailerRound.Set(float64(round))
}

// SetReachable records whether peer answered its most recent request.
func (m *Registry) SetReachable(peer government.ID, reachable bool) {
	if m == nil {
		return
	}
	v := 0.0
	if reachable {
		v = 1.0
	}
	m.reachable.WithLabelValues(string(peer)).Set(v)
}

// IncCollapse records a fast-path collapse.
func (m *Registry) IncCollapse() {
	if m == nil {
		return
	}
	m.collapses.Inc()
}
