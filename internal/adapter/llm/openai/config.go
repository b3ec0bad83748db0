package openai

import (
	"time"

	"github.com/omnitea/omnitea/internal/config"
)

// BuildRetryConfig maps the global HTTP settings onto the client's retry
// policy. Unset or malformed values keep their defaults.
func BuildRetryConfig(cfg config.HTTPConfig) RetryConfig {
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	retry.InitialBackoff = config.ParseDurationDefault(cfg.InitialBackoff, retry.InitialBackoff)
	retry.MaxBackoff = config.ParseDurationDefault(cfg.MaxBackoff, retry.MaxBackoff)
	if cfg.BackoffMultiplier > 0 {
		retry.Multiplier = cfg.BackoffMultiplier
	}
	return retry
}

// ParseTimeout returns the HTTP client timeout from config, defaulting to
// the client's built-in timeout.
func ParseTimeout(cfg config.HTTPConfig) time.Duration {
	return config.ParseDurationDefault(cfg.Timeout, defaultTimeout)
}
