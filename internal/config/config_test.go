package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
log_level: debug
gateway:
  base_url: "https://aa.example.com"
  timeout: 5s
otp:
  resend_cooldown: 45s
  max_attempts: 5
session:
  ttl: 10m
redis:
  addr: "localhost:6379"
  db: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://aa.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout.Duration)
	assert.Equal(t, 45*time.Second, cfg.OTP.ResendCooldown.Duration)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_MissingKeysKeepDefaults(t *testing.T) {
	path := writeConfig(t, `listen: ":7070"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.OTP.ResendCooldown.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, "otp:\n  resend_cooldown: soon\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		path := writeConfig(t, "log_level: loud\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("zero cooldown", func(t *testing.T) {
		path := writeConfig(t, "otp:\n  resend_cooldown: 0s\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}
