package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Configuration
	applyDefaults(&cfg)

	assert.EqualValues(t, DefaultProbeIntervalMillis, cfg.ProbeIntervalMillis)
	assert.EqualValues(t, DefaultProbeTimeoutMillis, cfg.ProbeTimeoutMillis)
	assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, ProbeTCP, cfg.ProbeType)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTPPort)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestValidateConfig_RejectsOutOfRangeCadence(t *testing.T) {
	cfg := Configuration{
		ProbeIntervalMillis: 50,
		ProbeTimeoutMillis:  99999,
		Thresholds:          DefaultThresholds(),
		ProbeType:           ProbeTCP,
		HTTPPort:            7331,
	}
	err := ValidateConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_interval_ms")
	assert.Contains(t, err.Error(), "probe_timeout_ms")
}

func TestValidateConfig_RejectsBadProbeType(t *testing.T) {
	cfg := Configuration{
		ProbeIntervalMillis: 500,
		ProbeTimeoutMillis:  1500,
		Thresholds:          DefaultThresholds(),
		ProbeType:           "udp",
		HTTPPort:            7331,
	}
	err := ValidateConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_type")
}

func TestValidateConfig_RejectsTooManyTargets(t *testing.T) {
	cfg := Configuration{
		ProbeIntervalMillis: 500,
		ProbeTimeoutMillis:  1500,
		Thresholds:          DefaultThresholds(),
		ProbeType:           ProbeTCP,
		HTTPPort:            7331,
	}
	for i := 0; i < 11; i++ {
		cfg.Targets = append(cfg.Targets, TargetConfig{Host: "127.0.0.1", Port: 80, Label: "x"})
	}
	err := ValidateConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targets")
}

func TestValidateConfigWithDetails_Valid(t *testing.T) {
	cfg := Configuration{
		ProbeIntervalMillis: 500,
		ProbeTimeoutMillis:  1500,
		Thresholds:          DefaultThresholds(),
		ProbeType:           ProbeTCP,
		HTTPPort:            7331,
	}
	result := ValidateConfigWithDetails(&cfg)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestBuildTargets_SlugifiesAndDefaultsEnabled(t *testing.T) {
	cfg := Configuration{
		Targets: []TargetConfig{
			{Host: "1.1.1.1", Port: 53, Label: "Cloudflare DNS"},
			{Host: "8.8.8.8", Port: 53, Label: "Google DNS", Disabled: true},
		},
	}

	targets, err := cfg.BuildTargets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "cloudflare-dns", targets[0].ID)
	assert.True(t, targets[0].Enabled)
	assert.Equal(t, "google-dns", targets[1].ID)
	assert.False(t, targets[1].Enabled)
}

func TestBuildTargets_DuplicateIDsRejected(t *testing.T) {
	cfg := Configuration{
		Targets: []TargetConfig{
			{Host: "1.1.1.1", Port: 53, Label: "dns"},
			{Host: "8.8.8.8", Port: 53, Label: "DNS"},
		},
	}
	_, err := cfg.BuildTargets()
	require.Error(t, err)
}
