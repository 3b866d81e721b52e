// Package config loads NetPulse's Configuration using Viper for layered
// loading from a YAML file, NETPULSE_-prefixed environment variables,
// and command-line flags bound by cmd. It validates every value
// against the ranges the scheduler and probe transports require before
// handing a Configuration back to the caller.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/conneroisu/netpulse/internal/target"
)

// ProbeType names which transport every target in a Configuration uses.
type ProbeType string

const (
	ProbeTCP  ProbeType = "tcp"
	ProbeICMP ProbeType = "icmp"
)

// Thresholds holds the three bad-condition limits checked on every
// metrics refresh.
type Thresholds struct {
	LossPercent  float64 `yaml:"loss_pct" mapstructure:"loss_pct"`
	P95Millis    float64 `yaml:"p95_ms" mapstructure:"p95_ms"`
	JitterMillis float64 `yaml:"jitter_ms" mapstructure:"jitter_ms"`
}

// TargetConfig is a target as it appears in the configuration file,
// before slugification assigns it an id. Targets are enabled by
// default; Disabled opts one out without removing it from the file.
type TargetConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Label    string `yaml:"label" mapstructure:"label"`
	Disabled bool   `yaml:"disabled" mapstructure:"disabled"`
}

// Configuration is NetPulse's full runtime configuration: global probe
// cadence, bad-condition thresholds, the selected transport, where the
// HTTP/WS server listens, where the event journal is written, and the
// target list.
type Configuration struct {
	ProbeIntervalMillis int64          `yaml:"probe_interval_ms" mapstructure:"probe_interval_ms"`
	ProbeTimeoutMillis  int64          `yaml:"probe_timeout_ms" mapstructure:"probe_timeout_ms"`
	Thresholds          Thresholds     `yaml:"thresholds" mapstructure:"thresholds"`
	ProbeType           ProbeType      `yaml:"probe_type" mapstructure:"probe_type"`
	HTTPPort            int            `yaml:"http_port" mapstructure:"http_port"`
	DataDir             string         `yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel            string         `yaml:"log_level" mapstructure:"log_level"`
	Targets             []TargetConfig `yaml:"targets" mapstructure:"targets"`
}

// defaults mirror the configuration defaults. DataDir has no constant
// here: an unset DataDir resolves to $HOME/.netpulse at startup, since
// expanding the home directory isn't this package's concern.
const (
	DefaultProbeIntervalMillis = 500
	DefaultProbeTimeoutMillis  = 1500
	DefaultHTTPPort            = 7331
	DefaultLogLevel            = "info"
)

// DefaultThresholds returns the spec's default bad-condition limits.
func DefaultThresholds() Thresholds {
	return Thresholds{LossPercent: 5.0, P95Millis: 100.0, JitterMillis: 20.0}
}

// applyDefaults fills any zero-valued field v left unset after
// unmarshalling, mirroring viper.SetDefault for fields viper's own
// zero-value handling doesn't distinguish from "unset".
func applyDefaults(c *Configuration) {
	if c.ProbeIntervalMillis == 0 {
		c.ProbeIntervalMillis = DefaultProbeIntervalMillis
	}
	if c.ProbeTimeoutMillis == 0 {
		c.ProbeTimeoutMillis = DefaultProbeTimeoutMillis
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds()
	}
	if c.ProbeType == "" {
		c.ProbeType = ProbeTCP
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Load unmarshals the currently bound viper configuration (file, env,
// flags — wired by cmd/root.go) into a Configuration, applies defaults,
// and validates the result.
func Load() (*Configuration, error) {
	var cfg Configuration
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// BuildTargets slugifies and validates every TargetConfig, returning
// the Target set the scheduler consumes.
func (c *Configuration) BuildTargets() ([]target.Target, error) {
	targets := make([]target.Target, 0, len(c.Targets))
	for _, tc := range c.Targets {
		label := tc.Label
		if label == "" {
			label = tc.Host
		}
		t, err := target.New(tc.Host, uint16(tc.Port), label)
		if err != nil {
			return nil, err
		}
		t.Enabled = !tc.Disabled
		targets = append(targets, t)
	}

	if err := target.ValidateSet(targets); err != nil {
		return nil, err
	}
	return targets, nil
}
