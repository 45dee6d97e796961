package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValidOnceJWTConfigured(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.JWT.Secret = "test-secret"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Commitment.AtRiskThreshold.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, 20, cfg.Override.MinJustificationLength)
	assert.Equal(t, time.Hour, cfg.Override.RateWindow)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cellarledger.toml")
	content := `
[server]
port = "9090"

[storage]
driver = "memory"

[jwt]
secret = "from-file"

[commitment]
at_risk_threshold = "0.25"

[override]
rate_limit = 3
rate_window = "30m"

[jobs]
at_risk_interval = "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("OVERRIDE_RATE_LIMIT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.True(t, cfg.Commitment.AtRiskThreshold.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 5, cfg.Override.RateLimit)
	assert.Equal(t, 30*time.Minute, cfg.Override.RateWindow)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.AtRiskInterval)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.LocationCacheTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.JWT.Secret = "x"
	cfg.Storage.Driver = "sqlite"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestGetEnvHelpers_IgnoreMalformed(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_DURATION", "soon")
	t.Setenv("TEST_BOOL", "true")

	assert.Equal(t, 4, getEnvInt("TEST_INT", 4))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.True(t, getEnvBool("TEST_BOOL", false))
}
