package audit

import (
	"os"
	"strconv"
)

// Config controls audit recording.
type Config struct {
	// Enabled toggles the middleware entirely.
	Enabled bool
	// LogDenied includes 403 outcomes in the trail.
	LogDenied bool
	// RetentionDays is how long events are kept.
	RetentionDays int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		LogDenied:     true,
		RetentionDays: 90,
	}
}

// ConfigFromEnv loads the config from environment variables:
// METASTORE_AUDIT_ENABLED, METASTORE_AUDIT_LOG_DENIED,
// METASTORE_AUDIT_RETENTION_DAYS.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("METASTORE_AUDIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("METASTORE_AUDIT_LOG_DENIED"); v != "" {
		cfg.LogDenied, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("METASTORE_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}

	return cfg
}
