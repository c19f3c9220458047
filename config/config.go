// Package config loads optimization runs described in YAML.
//
// A run file for psobench:
//
//	function: heatsink
//	n_particles: 20
//	range_count_thresh: 5
//	convergence_range: 0.001
//	params:
//	  - {name: n_plates, discrete: true, min: 15, max: 60}
//	  - {name: plate_width, min: 0.5, max: 3}
//
// function names the benchmark to optimize and params, when given, replace
// its variables.  Validate does not require function: programs that supply
// their own objective only use the swarm settings and Specs.  Everything not
// given keeps the value of Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/swarm"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Param struct {
	Name     string  `yaml:"name"`
	Discrete bool    `yaml:"discrete,omitempty"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	// Step is the grid spacing of a discrete param; 0 means 1.
	Step float64 `yaml:"step,omitempty"`
}

type Config struct {
	NParticles       int     `yaml:"n_particles"`
	Inertia          float64 `yaml:"w_inertia"`
	Cognition        float64 `yaml:"c_cog"`
	Social           float64 `yaml:"c_social"`
	RangeCountThresh int     `yaml:"range_count_thresh"`
	ConvergenceRange float64 `yaml:"convergence_range"`
	MaxIterations    int     `yaml:"max_iterations"`
	Logging          bool    `yaml:"logging"`
	BoxInit          bool    `yaml:"box_init"`
	// MaxSamples caps rejection seeding draws; 0 picks a default.
	MaxSamples int `yaml:"max_samples,omitempty"`
	// Seed seeds the random source; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	// Function names a benchmark objective (see package bench).  Its
	// variables are used when Params is empty.
	Function string  `yaml:"function,omitempty"`
	Params   []Param `yaml:"params,omitempty"`
	// History is the path of an sqlite database receiving swarm snapshots.
	History  string `yaml:"history,omitempty"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the settings of swarm.DefaultConfig with seed 1 and info
// logging.
func Default() Config {
	sc := swarm.DefaultConfig()
	return Config{
		NParticles:       sc.NParticles,
		Inertia:          sc.Inertia,
		Cognition:        sc.Cognition,
		Social:           sc.Social,
		RangeCountThresh: sc.RangeCountThresh,
		ConvergenceRange: sc.ConvergenceRange,
		MaxIterations:    sc.MaxIterations,
		Logging:          sc.Logging,
		BoxInit:          sc.BoxInit,
		Seed:             1,
		LogLevel:         "info",
	}
}

// Parse reads a YAML run description on top of Default and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the run file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate rejects degenerate settings the optimizer itself does not check.
func (c Config) Validate() error {
	if c.NParticles < 1 {
		return invalid("n_particles must be at least 1, got %v", c.NParticles)
	}
	if c.RangeCountThresh < 1 {
		return invalid("range_count_thresh must be at least 1, got %v", c.RangeCountThresh)
	}
	if c.ConvergenceRange < 0 || math.IsNaN(c.ConvergenceRange) {
		return invalid("convergence_range cannot be negative, got %v", c.ConvergenceRange)
	}
	if c.MaxSamples < 0 {
		return invalid("max_samples cannot be negative, got %v", c.MaxSamples)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if len(c.Params) == 0 && c.Function == "" {
		return invalid("no params and no function given")
	}
	names := map[string]bool{}
	for i, p := range c.Params {
		if p.Name == "" {
			return invalid("param %d has no name", i)
		}
		if names[p.Name] {
			return invalid("duplicate param name %q", p.Name)
		}
		names[p.Name] = true
		if !(p.Min < p.Max) {
			return invalid("param %q: min %v must be below max %v", p.Name, p.Min, p.Max)
		}
		if p.Discrete && p.Step < 0 {
			return invalid("param %q: step cannot be negative, got %v", p.Name, p.Step)
		}
	}
	return nil
}

// Swarm returns the optimizer settings.
func (c Config) Swarm() swarm.Config {
	return swarm.Config{
		NParticles:       c.NParticles,
		Inertia:          c.Inertia,
		Cognition:        c.Cognition,
		Social:           c.Social,
		RangeCountThresh: c.RangeCountThresh,
		ConvergenceRange: c.ConvergenceRange,
		MaxIterations:    c.MaxIterations,
		Logging:          c.Logging,
		BoxInit:          c.BoxInit,
	}
}

// Specs returns the declared variables.
func (c Config) Specs() []optim.Spec {
	specs := make([]optim.Spec, len(c.Params))
	for i, p := range c.Params {
		if p.Step != 0 {
			specs[i] = optim.NewSpec(p.Name, p.Discrete, p.Min, p.Max, p.Step)
		} else {
			specs[i] = optim.NewSpec(p.Name, p.Discrete, p.Min, p.Max)
		}
	}
	return specs
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
