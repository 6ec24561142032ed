// Package config loads the tunables a citizen is constructed with from
// YAML, keeping file I/O out of internal/citizen entirely (§5: no I/O
// inside the core).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/paxgov/citizenry/internal/citizen"
	"github.com/paxgov/citizenry/internal/government"
)

// File is the on-disk shape of a citizen's configuration.
type File struct {
	Republic           string `yaml:"republic"`
	Self               string `yaml:"self"`
	ParliamentSize     int    `yaml:"parliamentSize"`
	PingInterval       int64  `yaml:"ping"`
	UnreachableTimeout int64  `yaml:"timeout"`
	CollapseTimeout    int64  `yaml:"collapseTimeout"`
	RetrySeed          int64  `yaml:"retrySeed"`
}

// Defaults mirror a small republic: a three-seat parliament with a
// one-tick ping cadence and generous collapse patience.
var Defaults = File{
	ParliamentSize:     3,
	PingInterval:       1,
	UnreachableTimeout: 10,
	CollapseTimeout:    30,
	RetrySeed:          1,
}

// Load reads and parses a citizen configuration file at path, filling
// unset fields from Defaults.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "config: read %s", path)
	}
	f := Defaults
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the fields Load cannot sensibly default.
func (f File) Validate() error {
	if f.Republic == "" {
		return errors.New("config: republic is required")
	}
	if f.Self == "" {
		return errors.New("config: self is required")
	}
	if f.ParliamentSize <= 0 {
		return errors.New("config: parliamentSize must be positive")
	}
	return nil
}

// Citizen translates the file into a citizen.Config.
func (f File) Citizen() citizen.Config {
	return citizen.Config{
		Republic:           f.Republic,
		Self:               government.ID(f.Self),
		ParliamentSize:     f.ParliamentSize,
		PingInterval:       f.PingInterval,
		UnreachableTimeout: f.UnreachableTimeout,
		CollapseTimeout:    f.CollapseTimeout,
		RetrySeed:          f.RetrySeed,
	}
}
