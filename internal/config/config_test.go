package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so no aboutpage.toml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ABOUTPAGE_CONFIG", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", c.Server.Address)
	assert.Equal(t, 30*time.Second, c.Server.ContextTTL)
	assert.Equal(t, "About page", c.Counter.Message)
	assert.Equal(t, "always", c.Counter.Gate)
	assert.True(t, c.NATS.Enabled)
	assert.Equal(t, 10, c.NATS.Replay)
	assert.Empty(t, c.Sessions.DB)

	lvl, err := c.Log.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ABOUTPAGE_COUNTER_GATE", "skip-decrement")
	t.Setenv("ABOUTPAGE_SERVER_ADDRESS", ":9999")
	t.Setenv("ABOUTPAGE_NATS_ENABLED", "false")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "skip-decrement", c.Counter.Gate)
	assert.Equal(t, ":9999", c.Server.Address)
	assert.False(t, c.NATS.Enabled)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[counter]
message = "Hello"
gate = "never"

[log]
level = "debug"
dev = false

[sessions]
db = "sessions.db"
`), 0o600))
	t.Setenv("ABOUTPAGE_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Hello", c.Counter.Message)
	assert.Equal(t, "never", c.Counter.Gate)
	assert.False(t, c.Log.Dev)
	assert.Equal(t, "sessions.db", c.Sessions.DB)
	lvl, err := c.Log.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ABOUTPAGE_CONFIG", filepath.Join(dir, "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadLogLevel(t *testing.T) {
	isolate(t)
	t.Setenv("ABOUTPAGE_LOG_LEVEL", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}
