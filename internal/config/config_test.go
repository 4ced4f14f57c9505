package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", " s3cret ")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, "s3cret", cfg.AuthSecret)
	assert.Equal(t, "optibid", cfg.TokenIssuer)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, 5.0, cfg.RatePerSec)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.TrustProxy)
	assert.True(t, cfg.GRPCEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", "k")
	t.Setenv("OPTIBID_ACCESS_TTL", "15m")
	t.Setenv("OPTIBID_GRPC_ADDR", "-")
	t.Setenv("OPTIBID_TRUST_PROXY", "true")
	t.Setenv("OPTIBID_ALLOWED_ORIGINS", "https://optibid.com, https://app.optibid.com,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, []string{"https://optibid.com", "https://app.optibid.com"}, cfg.AllowedOrigins)
	assert.False(t, cfg.GRPCEnabled())
	assert.True(t, cfg.TrustProxy)
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", "   ")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestRequestTimeoutMustBePositive(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", "k")
	t.Setenv("OPTIBID_REQUEST_TIMEOUT", "0s")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestInvalidDuration(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", "k")
	t.Setenv("OPTIBID_REFRESH_TTL", "forever")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestStoreSourcesAreExclusive(t *testing.T) {
	t.Setenv("OPTIBID_AUTH_SECRET", "k")
	t.Setenv("OPTIBID_PG_DSN", "postgres://localhost/optibid")
	t.Setenv("OPTIBID_PRINCIPALS_FILE", "principals.yaml")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPTIBID_AUTH_SECRET=from-file\nOPTIBID_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("OPTIBID_AUTH_SECRET", "")
	t.Setenv("OPTIBID_LOG_LEVEL", "warn")
	os.Unsetenv("OPTIBID_AUTH_SECRET")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AuthSecret)
	assert.Equal(t, "warn", cfg.LogLevel, "process environment wins over the file")
}
