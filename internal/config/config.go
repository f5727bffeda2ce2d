package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	// Transformation service
	TransformAPIBaseURL string
	TransformAPIKey     string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Billing
	StripeSecretKey string

	// Purchase tokens
	PurchaseTokenSecret string
	PurchaseTokenTTL    time.Duration

	// Entitlements
	AnonymousFreeLimit int

	// Submission rate limiting
	SubmitRatePerSecond float64
	SubmitRateBurst     int

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	cfg := &Config{
		TransformAPIBaseURL: getEnv("TRANSFORM_API_BASE_URL", "https://api.transform.example.com/v1/"),
		TransformAPIKey:     getEnv("TRANSFORM_API_KEY", ""),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "processed-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),

		PurchaseTokenSecret: getEnv("PURCHASE_TOKEN_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	var err error
	if cfg.PurchaseTokenTTL, err = getDuration("PURCHASE_TOKEN_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AnonymousFreeLimit, err = getInt("ANON_FREE_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.SubmitRateBurst, err = getInt("SUBMIT_RATE_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.SubmitRatePerSecond, err = getFloat("SUBMIT_RATE_PER_SECOND", 2); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TransformAPIKey == "" {
		return fmt.Errorf("TRANSFORM_API_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if len(c.PurchaseTokenSecret) < 16 {
		return fmt.Errorf("PURCHASE_TOKEN_SECRET must be at least 16 bytes")
	}
	if c.PurchaseTokenTTL <= 0 {
		return fmt.Errorf("PURCHASE_TOKEN_TTL must be positive")
	}
	if c.AnonymousFreeLimit < 0 {
		return fmt.Errorf("ANON_FREE_LIMIT must not be negative")
	}
	return nil
}

// StorageEnabled reports whether processed results can be uploaded to Supabase Storage.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabasePublishableKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
