package config

import "strings"

// Toolchain selects the compiler used for the WebAssembly build.
type Toolchain string

const (
	ToolchainGo     Toolchain = "go"
	ToolchainTinyGo Toolchain = "tinygo"
)

// NormalizeToolchain canonicalizes user input returning empty string if unknown.
func NormalizeToolchain(raw string) Toolchain {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ToolchainGo):
		return ToolchainGo
	case string(ToolchainTinyGo):
		return ToolchainTinyGo
	default:
		return ""
	}
}

// ServeMode selects between the embedded dev server and an external backend process.
type ServeMode string

const (
	ServeModeEmbedded ServeMode = "embedded"
	ServeModeBackend  ServeMode = "backend"
)

// NormalizeServeMode canonicalizes user input returning empty string if unknown.
func NormalizeServeMode(raw string) ServeMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ServeModeEmbedded):
		return ServeModeEmbedded
	case string(ServeModeBackend), "external":
		return ServeModeBackend
	default:
		return ""
	}
}

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
	RetryBackoffJitter      RetryBackoffMode = "jitter"
)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	case string(RetryBackoffJitter), "random":
		return RetryBackoffJitter
	default:
		return ""
	}
}
