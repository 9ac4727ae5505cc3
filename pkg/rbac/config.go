package rbac

import (
	"os"
	"strconv"
	"time"
)

// AuthzMode selects the permission oracle backend.
type AuthzMode string

const (
	// AuthzModeNone grants everything (deployment-boundary authz).
	AuthzModeNone AuthzMode = "none"
	// AuthzModeSAR uses Kubernetes SubjectAccessReview.
	AuthzModeSAR AuthzMode = "sar"
)

// Config controls the RBAC engine.
type Config struct {
	// Enabled toggles all permission verification and dehydration. When
	// false every engine entry point returns its input unchanged.
	Enabled bool

	// Mode selects the permission oracle backend.
	Mode AuthzMode

	// CacheTTL is the verdict cache lifetime for the SAR backend.
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration: RBAC disabled.
func DefaultConfig() *Config {
	return &Config{
		Enabled:  false,
		Mode:     AuthzModeNone,
		CacheTTL: DefaultCacheTTL,
	}
}

// ConfigFromEnv loads the config from environment variables:
// METASTORE_RBAC_ENABLED, METASTORE_AUTHZ_MODE, METASTORE_AUTHZ_CACHE_TTL.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("METASTORE_RBAC_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("METASTORE_AUTHZ_MODE"); v != "" {
		switch AuthzMode(v) {
		case AuthzModeNone, AuthzModeSAR:
			cfg.Mode = AuthzMode(v)
		}
	}

	if v := os.Getenv("METASTORE_AUTHZ_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}

	return cfg
}
