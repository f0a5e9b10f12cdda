package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "velocity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:6379", cfg.Server.Addr)
	assert.Equal(t, 10000, cfg.Server.MaxClients)
	assert.Zero(t, cfg.Server.ReadTimeout)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, time.Second, cfg.Store.SweepInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "127.0.0.1:8080", cfg.Admin.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  addr: 127.0.0.1:7000
  read_timeout: 30s
  rate_limit: 500
store:
  sweep_interval: 250ms
log:
  level: debug
  format: text
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 500.0, cfg.Server.RateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.SweepInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 10000, cfg.Server.MaxClients, "unset keys keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
server:
  addr: 127.0.0.1:7000
  max_clients: 10
log:
  level: warn
`)
	t.Setenv("VELOCITY_SERVER__MAX_CLIENTS", "20")
	t.Setenv("VELOCITY_LOG__LEVEL", "error")
	t.Setenv("VELOCITY_STORE__SWEEP_INTERVAL", "5s")

	cfg, err := Load(path, map[string]any{"log.level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr, "file over defaults")
	assert.Equal(t, 20, cfg.Server.MaxClients, "env over file")
	assert.Equal(t, 5*time.Second, cfg.Store.SweepInterval, "env over defaults")
	assert.Equal(t, "debug", cfg.Log.Level, "overrides over env")
}

func TestLoad_AdminDisabled(t *testing.T) {
	cfg, err := Load("", map[string]any{"admin.enabled": false, "admin.addr": ""})
	require.NoError(t, err)
	assert.False(t, cfg.Admin.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"empty addr", map[string]any{"server.addr": ""}, "server.addr must not be empty"},
		{"negative max clients", map[string]any{"server.max_clients": -1}, "server.max_clients must be >= 0"},
		{"negative rate", map[string]any{"server.rate_limit": -2.5}, "server.rate_limit must be >= 0"},
		{"bad level", map[string]any{"log.level": "loud"}, `log.level "loud"`},
		{"bad format", map[string]any{"log.format": "xml"}, `log.format "xml"`},
		{"admin without addr", map[string]any{"admin.addr": ""}, "admin.addr must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryError(t *testing.T) {
	_, err := Load("", map[string]any{"server.addr": "", "log.format": "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoader_Dump(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)
	require.NoError(t, l.LoadMap(map[string]any{"server.addr": "127.0.0.1:1234"}))

	out, err := l.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "127.0.0.1:1234")
	assert.Contains(t, string(out), "sweep_interval")
}

func TestMapProvider(t *testing.T) {
	m, err := mapProvider{"a.b": 1, "c": "d"}.Read()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}, "c": "d"}, m)

	_, err = mapProvider{}.ReadBytes()
	assert.ErrorIs(t, err, ErrReadBytesNotSupported)
}
