package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.Session.VisibilityWindow)
	assert.Equal(t, 5, cfg.Session.MaxVisible)
	assert.Equal(t, time.Second, cfg.Session.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.RPC.ResponseTimeout)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
session:
  visibility_window: 3s
privacy:
  mask_contact_numbers: true
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "host keeps its default")
	assert.Equal(t, 3*time.Second, cfg.Session.VisibilityWindow)
	assert.Equal(t, 5, cfg.Session.MaxVisible)
	assert.True(t, cfg.Privacy.MaskContactNumbers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero window", func(c *Config) { c.Session.VisibilityWindow = 0 }, "visibility_window"},
		{"zero limit", func(c *Config) { c.Session.MaxVisible = 0 }, "max_visible"},
		{"zero refresh", func(c *Config) { c.Session.RefreshInterval = 0 }, "refresh_interval"},
		{"zero timeout", func(c *Config) { c.RPC.ResponseTimeout = 0 }, "response_timeout"},
		{"max below base", func(c *Config) { c.Client.ReconnectMaxDelay = time.Millisecond }, "reconnect"},
		{"weekday range", func(c *Config) { c.Agent.ExcludedWeekdays = []int{7} }, "excluded_weekdays"},
		{"bad time", func(c *Config) { c.Agent.AvailableTimes = []string{"9am"} }, "available_times"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
