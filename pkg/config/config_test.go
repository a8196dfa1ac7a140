package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	cfg.Destinations.MasterSecret = strings.Repeat("s", 32)
	return cfg
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Blobstore.Type)
	assert.Equal(t, "fake", cfg.OCR.Provider)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.AgentTokenDuration)
	assert.Equal(t, time.Hour, cfg.Quota.RolloverInterval)
	assert.Equal(t, 4, cfg.Syncer.Workers)
}

func TestValidateValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	cfg := GetDefaultConfig()
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = "too-short"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min")
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "LOUD"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidateRejectsInvalidAPIPort(t *testing.T) {
	cfg := validConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max")
}

func TestValidateS3RequiresBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Blobstore.Type = "s3"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestValidateHTTPOCRRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.OCR.Provider = "http"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  access_token_duration: 30m
destinations:
  master_secret: "fedcba9876543210fedcba9876543210"
api:
  port: 9999
syncer:
  workers: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, 7, cfg.Syncer.Workers)
	// Unset values fall back to defaults.
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Blobstore.Type)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("RMIRROR_AUTH_JWT_SECRET", strings.Repeat("e", 32))
	t.Setenv("RMIRROR_DESTINATIONS_MASTER_SECRET", strings.Repeat("m", 32))

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("e", 32), cfg.Auth.JWTSecret)
	assert.Equal(t, strings.Repeat("m", 32), cfg.Destinations.MasterSecret)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := validConfig()
	cfg.API.Port = 8123
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.API.Port)
	assert.Equal(t, cfg.Auth.JWTSecret, loaded.Auth.JWTSecret)
}

func TestMustLoadMissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
