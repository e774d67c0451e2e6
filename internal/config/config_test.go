package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the loader at an empty directory so a stray a2ui.yaml in
// the package directory cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(EnvConfigFile, "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 8092, cfg.RPC.Port)
	assert.Equal(t, 30*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, int64(65536), cfg.WS.MaxMessageSize)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "a2ui-web", cfg.Session.UserID)
	assert.Equal(t, "seichijunrei_bot", cfg.Session.AppName)
	assert.Equal(t, "zh-CN", cfg.View.DefaultLanguage)
	assert.Equal(t, 10, cfg.View.MaxCandidates)
	assert.Equal(t, "main", cfg.View.SurfaceID)
	assert.True(t, cfg.Policy.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Backend.URL)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("A2UI_HTTP_PORT", "9000")
	t.Setenv("A2UI_SESSION_STORE", "redis")
	t.Setenv("A2UI_SESSION_TTL", "2h")
	t.Setenv("A2UI_REDIS_ADDR", "cache:6379")
	t.Setenv("A2UI_VIEW_MAX_CANDIDATES", "0")
	t.Setenv("A2UI_POLICY_ENABLED", "false")
	t.Setenv("A2UI_BACKEND_URL", "http://agent:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.View.MaxCandidates)
	assert.False(t, cfg.Policy.Enabled)
	assert.Equal(t, "http://agent:8000", cfg.Backend.URL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	content := `
http:
  port: 7070
session:
  store: sqlite
sqlite:
  dsn: /var/lib/a2ui/sessions.db
view:
  default_language: en
ws:
  read_timeout: 5s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a2ui.yaml"), []byte(content), 0o600))
	t.Setenv("A2UI_HTTP_PORT", "7171")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.HTTP.Port, "env wins over the file")
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "/var/lib/a2ui/sessions.db", cfg.SQLite.DSN)
	assert.Equal(t, "en", cfg.View.DefaultLanguage)
	assert.Equal(t, 5*time.Second, cfg.WS.ReadTimeout)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := isolate(t)
	t.Setenv(EnvConfigFile, filepath.Join(dir, "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	t.Setenv("A2UI_SESSION_STORE", "etcd")
	t.Setenv("A2UI_VIEW_MAX_CANDIDATES", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.store")
	assert.Contains(t, err.Error(), "view.max_candidates")
}
