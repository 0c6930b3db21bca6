package config

import (
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if NormalizeToolchain(string(cfg.Build.Toolchain)) == "" {
		return invalid("build.toolchain", cfg.Build.Toolchain, "expected go or tinygo")
	}
	if NormalizeServeMode(string(cfg.Serve.Mode)) == "" {
		return invalid("serve.mode", cfg.Serve.Mode, "expected embedded or backend")
	}
	if cfg.Serve.Port < 0 || cfg.Serve.Port > 65535 {
		return invalid("serve.port", cfg.Serve.Port, "out of range")
	}
	if NormalizeRetryBackoff(string(cfg.Optimize.Retry.Backoff)) == "" {
		return invalid("optimize.retry.backoff", cfg.Optimize.Retry.Backoff, "expected fixed, linear, exponential or jitter")
	}
	if cfg.Optimize.Retry.Retries() < 0 {
		return invalid("optimize.retry.max_retries", cfg.Optimize.Retry.Retries(), "cannot be negative")
	}
	for field, raw := range map[string]string{
		"optimize.retry.initial_delay": cfg.Optimize.Retry.InitialDelay,
		"optimize.retry.max_delay":     cfg.Optimize.Retry.MaxDelay,
		"watch.debounce":               cfg.Watch.Debounce,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return invalid(field, raw, err.Error())
		}
		if d <= 0 {
			return invalid(field, raw, "must be > 0")
		}
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	return ferrors.ConfigError(fmt.Sprintf("invalid %s %q: %s", field, fmt.Sprint(value), reason)).
		WithContext("field", field).
		Build()
}
