package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RESTO_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("RESTO_AUTH_ADMIN_PASSWORD", "test-pass")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 1500*time.Millisecond, cfg.Analysis.Interval)
	assert.Equal(t, 4, cfg.Analysis.QueueLimit)
	assert.Equal(t, 0.45, cfg.Identity.StaffSimilarity)
	assert.Equal(t, 30, cfg.Identity.LookbackDays)
	assert.Equal(t, 2*time.Minute, cfg.Persistence.BillingDedupWindow)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RESTO_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("RESTO_AUTH_ADMIN_PASSWORD", "test-pass")
	t.Setenv("RESTO_HTTP_ADDR", ":9090")
	t.Setenv("RESTO_ANALYSIS_QUEUE_LIMIT", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 7, cfg.Analysis.QueueLimit)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("RESTO_AUTH_JWT_SECRET", "")
	t.Setenv("RESTO_AUTH_ADMIN_PASSWORD", "")
	_, err := Load("")
	assert.Error(t, err)
}

func TestStockClassMap(t *testing.T) {
	cfg := InferenceConfig{StockClasses: map[string]string{
		"0":   "bakwan",
		"1":   "tahu_isi",
		"bad": "ignored",
	}}
	assert.Equal(t, map[int]string{0: "bakwan", 1: "tahu_isi"}, cfg.StockClassMap())
	assert.Nil(t, InferenceConfig{}.StockClassMap())
}
