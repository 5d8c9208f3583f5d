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

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://tasks.example.org
auth:
  jwt_secret: s3cret
  accounts:
    - email: coord@example.org
      name: 協調員
      password_hash: $2a$10$abcdefghijklmnopqrstuu
      role_id: 40
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "/api/v1", cfg.API.Prefix)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionIdle)
	assert.Equal(t, 10*time.Minute, cfg.Cache.GCTime)
	assert.Equal(t, 3, cfg.Cache.MaxRetries)
	assert.Equal(t, "task_snapshots", cfg.Database.SnapshotTable)
	assert.Equal(t, "json", cfg.Log.Format)
	require.Len(t, cfg.Auth.Accounts, 1)
	assert.Equal(t, 40, cfg.Auth.Accounts[0].RoleID)
}

func TestLoadConfig_Durations(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  shutdown_timeout: 5s
api:
  base_url: http://localhost:3000
  timeout: 3s
  rate_per_second: 20
  burst: 5
auth:
  jwt_secret: x
cache:
  stale_time: 30s
log:
  format: console
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 20.0, cfg.API.RatePerSecond)
	assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://from-file
auth:
  jwt_secret: from-file
`)
	t.Setenv("RELIEFBOARD_API_BASE_URL", "https://from-env")
	t.Setenv("RELIEFBOARD_JWT_SECRET", "env-secret")
	t.Setenv("RELIEFBOARD_DATABASE_URL", "postgres://localhost/relief")
	t.Setenv("PORT", "7000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env", cfg.API.BaseURL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://localhost/relief", cfg.Database.DSN)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open config")

	_, err = LoadConfig(writeConfig(t, "api: [unclosed"))
	assert.ErrorContains(t, err, "parse")

	_, err = LoadConfig(writeConfig(t, "unknown_section: 1\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `
log:
  format: xml
telegram:
  token: abc
auth:
  accounts:
    - email: a@b.c
`))
	require.Error(t, err)
	for _, want := range []string{"api.base_url", "auth.jwt_secret", "accounts[0]", "log.format", "telegram.chat_id"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, "config/contacts.yaml", cfg.Contacts.Path)
	assert.Equal(t, 3, cfg.Cache.MaxRetries)
	assert.Empty(t, cfg.Auth.Accounts)
}
