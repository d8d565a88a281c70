package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.AuthSecret)
	require.Empty(t, cfg.SeedAdminPassword)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Address())
	require.Equal(t, time.Hour, cfg.CacheTTL)
	require.Equal(t, time.Minute, cfg.LoginTokenTTL)
	require.Equal(t, "invoices", cfg.InvoiceDir)
	require.False(t, cfg.EmailQueue)
	require.False(t, cfg.Production)
	require.Equal(t, 5, cfg.LoginRateLimit)
	require.Equal(t, 5, cfg.WorkerConcurrency)
}

func TestLoadReadsDurationsAndFlags(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("EMAIL_QUEUE", "true")
	t.Setenv("LOG_FORMAT", " JSON ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Address())
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.True(t, cfg.EmailQueue)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLocation(t *testing.T) {
	loc, err := Config{Timezone: "Local"}.Location()
	require.NoError(t, err)
	require.Equal(t, time.Local, loc)

	loc, err = Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	require.Equal(t, "UTC", loc.String())

	_, err = Config{Timezone: "Nowhere/Invalid"}.Location()
	require.Error(t, err)
}
