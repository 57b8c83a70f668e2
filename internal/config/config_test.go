package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navqueue/internal/router"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, router.PolicyPostpone, cfg.Policy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.DB)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, 5*time.Second, cfg.SettleTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("NAVQUEUE_POLICY", "Ignore")
	t.Setenv("NAVQUEUE_LOG_LEVEL", "debug")
	t.Setenv("NAVQUEUE_LOG_FORMAT", "json")
	t.Setenv("NAVQUEUE_DB", "/tmp/journal.db")
	t.Setenv("NAVQUEUE_METRICS", "true")
	t.Setenv("NAVQUEUE_SETTLE_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, router.PolicyIgnore, cfg.Policy)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/journal.db", cfg.DB)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad policy", "NAVQUEUE_POLICY", "sometimes", "parse env:"},
		{"bad bool", "NAVQUEUE_METRICS", "maybe", "parse env:"},
		{"bad duration", "NAVQUEUE_SETTLE_TIMEOUT", "soon", "parse env:"},
		{"zero timeout", "NAVQUEUE_SETTLE_TIMEOUT", "0s", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
