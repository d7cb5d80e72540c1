package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foundryd/internal/config"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "disabled config always valid",
			mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" },
		},
		{
			name:    "enabled without endpoint",
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "enabled without service name",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: "service_name",
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "thrift" },
			wantErr: "protocol",
		},
		{
			name:    "insecure remote endpoint",
			mutate:  func(c *Config) { c.Endpoint = "collector.example.com:4317" },
			wantErr: "insecure connections to remote endpoints",
		},
		{
			name:   "secure remote endpoint",
			mutate: func(c *Config) { c.Endpoint = "collector.example.com:4317"; c.Insecure = false },
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Sampling.Rate = 1.5 },
			wantErr: "sampling.rate",
		},
		{
			name:    "zero export interval",
			mutate:  func(c *Config) { c.Metrics.ExportInterval = 0 },
			wantErr: "export_interval",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Shutdown.Timeout = 0 },
			wantErr: "shutdown.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		local    bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"[::1]:4317", true},
		{"[::1]", true},
		{"collector.example.com:4317", false},
		{"10.0.0.5:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.local, cfg.isLocalEndpoint())
		})
	}
}

func TestNewDisabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry

	assert.False(t, tel.IsEnabled())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())
	require.NoError(t, tel.Shutdown(context.Background()))
	require.NoError(t, tel.ForceFlush(context.Background()))
	assert.True(t, tel.Health().Degraded)
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Equal(t, "foundryd", cfg.ServiceName)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Std())
	assert.Equal(t, config.Duration(5*time.Second), cfg.Shutdown.Timeout)
}
