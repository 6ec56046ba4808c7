package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwordless.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("STORE", "")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, time.Hour, c.GetTokenTTL())
	require.True(t, c.GetAllowTokenInQuery())
	require.Equal(t, 24*time.Hour, c.GetSessionMaxAge())
	require.Equal(t, "memory", c.GetStore())
	require.Equal(t, "console", c.GetDelivery())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL", "300")
	t.Setenv("ALLOW_TOKEN_IN_QUERY", "false")
	t.Setenv("BASE_URL", "https://auth.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example.com, https://a.example.com")
	t.Setenv("SMTP_ACCOUNT", "noreply@example.com")
	t.Setenv("SMTP_FROM", "")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 5*time.Minute, c.GetTokenTTL())
	require.False(t, c.GetAllowTokenInQuery())
	require.Equal(t, "https://auth.example.com", c.GetBaseURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://a.example.com"))
	require.Equal(t, "https://a.example.com, https://b.example.com", c.GetAllowedOrigins().String())
	require.Equal(t, "noreply@example.com", c.GetSmtpFrom())
}

func TestFileIsOverlaidByEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
port: 7000
token_ttl: 15m
store: redis
redis_addr: cache:6379
allow_token_in_query: false
`)
	t.Setenv("PORT", "")
	t.Setenv("STORE", "badger")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ALLOW_TOKEN_IN_QUERY", "")

	c, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	require.Equal(t, ":7000", c.GetPort())
	require.Equal(t, 15*time.Minute, c.GetTokenTTL())
	require.Equal(t, "badger", c.GetStore())
	require.Equal(t, "cache:6379", c.GetRedisAddr())
	require.False(t, c.GetAllowTokenInQuery())
}

func TestConfigFileFromEnvironment(t *testing.T) {
	path := writeConfigFile(t, "delivery: email\n")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DELIVERY", "")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "email", c.GetDelivery())
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("PORT", "9000")

	c, err := config.Load(config.WithOverrides(map[string]string{"PORT": "9100", "store": ""}))
	require.NoError(t, err)
	require.Equal(t, ":9100", c.GetPort())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")
	t.Setenv("ALLOW_TOKEN_IN_QUERY", "perhaps")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, time.Hour, c.GetTokenTTL())
	require.True(t, c.GetAllowTokenInQuery())
}

func TestMissingFile(t *testing.T) {
	_, err := config.Load(config.WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestSeedUsers(t *testing.T) {
	t.Setenv("SEED_USERS", " alice@example.com,,bob@example.com ")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, c.GetSeedUsers())
}
