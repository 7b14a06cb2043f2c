package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		HTTPPort:              "8080",
		DataDir:               "./data",
		MaxConcurrentMissions: 8,
		DeepDiveMaxDepth:      2,
		ScanHistoryMax:        50,
	}
}

func TestConfig_Validate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "missing http port",
			mutate: func(c *Config) { c.HTTPPort = "" },
			errMsg: "HTTP_PORT",
		},
		{
			name:   "missing data dir",
			mutate: func(c *Config) { c.DataDir = "" },
			errMsg: "DATA_DIR",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *Config) { c.MaxConcurrentMissions = 0 },
			errMsg: "MAX_CONCURRENT_MISSIONS",
		},
		{
			name:   "negative deep dive depth",
			mutate: func(c *Config) { c.DeepDiveMaxDepth = -1 },
			errMsg: "DEEP_DIVE_MAX_DEPTH",
		},
		{
			name:   "zero history cap",
			mutate: func(c *Config) { c.ScanHistoryMax = 0 },
			errMsg: "SCAN_HISTORY_MAX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := validConfig()

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Load_WithDefaults(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	cfg, err := Load()

	assert.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "8081", cfg.HealthPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.CountPerDomain)
	assert.Equal(t, 8, cfg.MaxConcurrentMissions)
	assert.Equal(t, 50, cfg.ScanHistoryMax)
	assert.True(t, cfg.DeepDiveEnabled)
	assert.Equal(t, 2, cfg.DeepDiveMaxDepth)
	assert.True(t, cfg.CorrelationEnabled)
	assert.True(t, cfg.AdaptiveEnabled)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 120*time.Second, cfg.InsightTimeout)
}

func TestConfig_Load_CustomValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_PORT", "9090")
	os.Setenv("COUNT_PER_DOMAIN", "4")
	os.Setenv("DEEP_DIVE_ENABLED", "false")
	os.Setenv("LLM_TIMEOUT", "30s")
	defer os.Clearenv()

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 4, cfg.CountPerDomain)
	assert.False(t, cfg.DeepDiveEnabled)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
}

func TestConfig_Load_InvalidIntFallsBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("COUNT_PER_DOMAIN", "lots")
	defer os.Clearenv()

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, 2, cfg.CountPerDomain)
}
