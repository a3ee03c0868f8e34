package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	ListenAddr string

	// InternalAPIKey, when set, is bootstrapped as an enterprise-tier
	// key owned by the admin user. The main TrackVerse app uses it to
	// push domain events into this service. If empty, no key is
	// bootstrapped.
	InternalAPIKey string

	// DeliveryTimeout bounds a single webhook delivery POST.
	DeliveryTimeout time.Duration

	// RetryInterval is how often the retry worker scans for failed
	// deliveries that are due for another attempt.
	RetryInterval time.Duration

	// DeliveryRetentionDays is how long terminal delivery records are
	// kept before the retention worker prunes them.
	DeliveryRetentionDays int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:             getenv("APP_ADMIN_USER", "admin"),
		AdminPassword:         getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:           os.Getenv("APP_DATABASE_URL"),
		ListenAddr:            getenv("APP_LISTEN_ADDR", ":8080"),
		InternalAPIKey:        getenv("APP_INTERNAL_API_KEY", ""),
		DeliveryTimeout:       30 * time.Second,
		RetryInterval:         30 * time.Second,
		DeliveryRetentionDays: 30,
	}

	if v := os.Getenv("APP_DELIVERY_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.DeliveryTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("APP_RETRY_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RetryInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("APP_DELIVERY_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.DeliveryRetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
