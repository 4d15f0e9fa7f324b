package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/templstore/storefront/internal/config"
)

func TestLoadRequiresUpstreamAndRedis(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"UPSTREAM_BASE_URL": "",
		"REDIS_URL":         "redis://localhost:6379",
	})
	require.ErrorContains(t, err, "UPSTREAM_BASE_URL")

	_, err = config.LoadForTests(map[string]string{
		"UPSTREAM_BASE_URL": "https://api.example.com",
		"REDIS_URL":         "",
	})
	require.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"UPSTREAM_BASE_URL":    "https://api.example.com/",
		"REDIS_URL":            "redis://localhost:6379",
		"PORT":                 "",
		"PRICING_TAX_RATE_BPS": "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://api.example.com", cfg.UpstreamBaseURL)
	require.Equal(t, 1800, cfg.TaxRateBps)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 1, cfg.UpstreamMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"UPSTREAM_BASE_URL":    "https://api.example.com",
		"REDIS_URL":            "redis://localhost:6379",
		"PORT":                 "9090",
		"PRICING_TAX_RATE_BPS": "1000",
		"UPSTREAM_TIMEOUT":     "2s",
		"CORS_ALLOWED_ORIGINS": "https://a.test, https://b.test",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 1000, cfg.TaxRateBps)
	require.Equal(t, 2*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}
