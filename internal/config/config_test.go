package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-studio-backend/internal/config"
)

func setRequired(t *testing.T) {
	t.Setenv("TRANSFORM_API_KEY", "transform-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	t.Setenv("PURCHASE_TOKEN_SECRET", "0123456789abcdef0123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "processed-images", cfg.SupabaseStorageBucket)
	assert.Equal(t, 30*time.Minute, cfg.PurchaseTokenTTL)
	assert.Equal(t, 3, cfg.AnonymousFreeLimit)
	assert.Equal(t, 5, cfg.SubmitRateBurst)
	assert.InDelta(t, 2.0, cfg.SubmitRatePerSecond, 0.0001)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PURCHASE_TOKEN_TTL", "5m")
	t.Setenv("ANON_FREE_LIMIT", "10")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "anon")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.PurchaseTokenTTL)
	assert.Equal(t, 10, cfg.AnonymousFreeLimit)
	assert.True(t, cfg.StorageEnabled())
}

func TestLoad_MissingTransformKey(t *testing.T) {
	setRequired(t)
	t.Setenv("TRANSFORM_API_KEY", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "TRANSFORM_API_KEY is required")
}

func TestLoad_ShortTokenSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("PURCHASE_TOKEN_SECRET", "short")

	_, err := config.Load()
	assert.ErrorContains(t, err, "PURCHASE_TOKEN_SECRET")
}

func TestLoad_BadInteger(t *testing.T) {
	setRequired(t)
	t.Setenv("ANON_FREE_LIMIT", "three")

	_, err := config.Load()
	assert.ErrorContains(t, err, "ANON_FREE_LIMIT must be an integer")
}
