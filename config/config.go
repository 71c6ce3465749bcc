// Package config loads the description of a run from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/diligent/sim"
)

// Environment variables that override the run file.
const (
	EnvInterval          = "DILIGENT_INTERVAL"
	EnvAcceptableLatency = "DILIGENT_ACCEPTABLE_LATENCY"
	EnvThreads           = "DILIGENT_THREADS"
	EnvLogLevel          = "DILIGENT_LOG_LEVEL"
	EnvDatabase          = "DILIGENT_DB"
)

// ErrInvalidEnv is returned when an override variable cannot be parsed.
var ErrInvalidEnv = errors.New("config: invalid environment override")

var validate = validator.New(validator.WithRequiredStructEnabled())

// RunConfig describes one run.
type RunConfig struct {
	Threads    int             `yaml:"threads" validate:"gte=1"`
	MinDelay   sim.VTimeInStep `yaml:"min_delay" validate:"gte=1"`
	SliceWidth sim.VTimeInStep `yaml:"slice_width" validate:"gte=1,ltefield=MinDelay"`
	Resolution float64         `yaml:"resolution" validate:"gt=0"`

	Interval          sim.VTimeInStep `yaml:"interval" validate:"gt=0"`
	AcceptableLatency sim.VTimeInStep `yaml:"acceptable_latency" validate:"gte=0"`

	// Steps is the length of the run. It is simulated in frames of Frame
	// steps; a Frame of 0 means a single frame.
	Steps sim.VTimeInStep `yaml:"steps" validate:"gt=0"`
	Frame sim.VTimeInStep `yaml:"frame" validate:"gte=0"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	Database string `yaml:"database"`

	Network NetworkConfig `yaml:"network"`
}

// NetworkConfig lists the nodes and edges of the run.
type NetworkConfig struct {
	Sources []SourceConfig `yaml:"sources" validate:"dive"`
	Targets []TargetConfig `yaml:"targets" validate:"dive"`
	Edges   []EdgeConfig   `yaml:"edges" validate:"dive"`
}

// SourceConfig is a spike source.
type SourceConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	SpikeTimes []sim.VTimeInStep `yaml:"spike_times" validate:"dive,gte=0"`
}

// TargetConfig is a pulse trace node. A missing weight means 1.
type TargetConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	Offset     float64           `yaml:"offset"`
	Weight     *float64          `yaml:"weight"`
	SpikeTimes []sim.VTimeInStep `yaml:"spike_times" validate:"dive,gte=0"`
}

// EdgeConfig creates Count edges from a source to a target. A missing
// weight means 1 and a delay of 0 means MinDelay.
type EdgeConfig struct {
	From           string          `yaml:"from" validate:"required"`
	To             string          `yaml:"to" validate:"required"`
	Model          string          `yaml:"model" validate:"oneof=probe static"`
	Count          int             `yaml:"count" validate:"gte=1"`
	Weight         *float64        `yaml:"weight"`
	Delay          sim.VTimeInStep `yaml:"delay" validate:"gte=0"`
	RetireAt       sim.VTimeInStep `yaml:"retire_at" validate:"gte=0"`
	RecordInterval sim.VTimeInStep `yaml:"record_interval" validate:"gte=0"`
}

// Default returns the configuration used for anything a run file leaves
// out.
func Default() RunConfig {
	return RunConfig{
		Threads:           1,
		MinDelay:          1,
		Resolution:        1.0,
		Interval:          100,
		AcceptableLatency: 100,
		Steps:             1000,
		LogLevel:          "info",
	}
}

// Load reads a run file, applies the environment overrides and validates
// the result. The overrides are read from the process environment after
// loading envFiles, ".env" if none is given. Missing env files are ignored.
func Load(path string, envFiles ...string) (RunConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return cfg, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	cfg.fillDerived()

	return cfg, cfg.Validate()
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides fields from the DILIGENT_* variables.
func (c *RunConfig) ApplyEnv() error {
	if err := envSteps(EnvInterval, &c.Interval); err != nil {
		return err
	}

	if err := envSteps(EnvAcceptableLatency, &c.AcceptableLatency); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(EnvThreads); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvThreads, v)
		}

		c.Threads = n
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}

	if v, ok := os.LookupEnv(EnvDatabase); ok {
		c.Database = v
	}

	return nil
}

func envSteps(name string, dst *sim.VTimeInStep) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, name, v)
	}

	*dst = sim.VTimeInStep(n)

	return nil
}

func (c *RunConfig) fillDerived() {
	if c.SliceWidth == 0 {
		c.SliceWidth = c.MinDelay
	}

	for i := range c.Network.Edges {
		e := &c.Network.Edges[i]

		if e.Model == "" {
			e.Model = "probe"
		}

		if e.Count == 0 {
			e.Count = 1
		}

		if e.Delay == 0 {
			e.Delay = c.MinDelay
		}
	}
}

// Validate checks the field constraints and that every edge names known
// nodes with a delay of at least MinDelay.
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	names := make(map[string]bool)
	for _, s := range c.Network.Sources {
		names[s.Name] = true
	}

	for _, t := range c.Network.Targets {
		if names[t.Name] {
			return fmt.Errorf("config: node %q is defined twice", t.Name)
		}

		names[t.Name] = true
	}

	for _, e := range c.Network.Edges {
		if !names[e.From] || !names[e.To] {
			return fmt.Errorf("config: edge %s -> %s names an unknown node",
				e.From, e.To)
		}

		if e.Delay < c.MinDelay {
			return fmt.Errorf("config: edge %s -> %s has delay %d below %d",
				e.From, e.To, e.Delay, c.MinDelay)
		}
	}

	return nil
}

// MaxLatency returns the trace window the run needs.
func (c *RunConfig) MaxLatency() sim.VTimeInStep {
	return c.Interval + c.AcceptableLatency + c.MinDelay
}
