package config

import "time"

// Default values shared by the loader and the CLI vars.
const (
	DefaultIP         = "127.0.0.1"
	DefaultPort       = 3000
	DefaultBuildPath  = "build"
	DefaultTargetDir  = "target"
	DefaultIndex      = "index.html"
	DefaultStaticDir  = "static"
	DefaultDebounce   = 2 * time.Second
	DefaultWasmOpt    = "wasm-opt"
	DefaultSass       = "sass"
	DefaultMaxRetries = 3
)

// DefaultLookupDirs are searched for stylesheet sources relative to the frontend unit.
var DefaultLookupDirs = []string{"assets", "styles", "css", "sass"}

func applyDefaults(cfg *Config) {
	if cfg.Frontend.Package == "" {
		cfg.Frontend.Package = "."
	}
	if cfg.Frontend.Index == "" {
		cfg.Frontend.Index = DefaultIndex
	}
	if cfg.Frontend.StaticDir == "" {
		cfg.Frontend.StaticDir = DefaultStaticDir
	}
	if cfg.Backend.Package == "" {
		cfg.Backend.Package = "."
	}

	if cfg.Build.Path == "" {
		cfg.Build.Path = DefaultBuildPath
	}
	if cfg.Build.TargetDir == "" {
		cfg.Build.TargetDir = DefaultTargetDir
	}
	if tc := NormalizeToolchain(string(cfg.Build.Toolchain)); tc != "" {
		cfg.Build.Toolchain = tc
	} else if cfg.Build.Toolchain == "" {
		cfg.Build.Toolchain = ToolchainGo
	}

	if cfg.Optimize.Enabled == nil {
		enabled := true
		cfg.Optimize.Enabled = &enabled
	}
	if cfg.Optimize.Binary == "" {
		cfg.Optimize.Binary = DefaultWasmOpt
	}
	if cfg.Optimize.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.Optimize.Retry.MaxRetries = &n
	}
	if cfg.Optimize.Retry.Backoff == "" {
		cfg.Optimize.Retry.Backoff = RetryBackoffJitter
	} else if m := NormalizeRetryBackoff(string(cfg.Optimize.Retry.Backoff)); m != "" {
		cfg.Optimize.Retry.Backoff = m
	}
	if cfg.Optimize.Retry.InitialDelay == "" {
		cfg.Optimize.Retry.InitialDelay = "1s"
	}
	if cfg.Optimize.Retry.MaxDelay == "" {
		cfg.Optimize.Retry.MaxDelay = "5s"
	}

	if len(cfg.Style.LookupDirs) == 0 {
		cfg.Style.LookupDirs = append([]string(nil), DefaultLookupDirs...)
	}
	if cfg.Style.SassBinary == "" {
		cfg.Style.SassBinary = DefaultSass
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = DefaultDebounce.String()
	}
	if cfg.Watch.UseGitignore == nil {
		use := true
		cfg.Watch.UseGitignore = &use
	}

	if cfg.Serve.IP == "" {
		cfg.Serve.IP = DefaultIP
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = DefaultPort
	}
	if cfg.Serve.Mode == "" {
		cfg.Serve.Mode = ServeModeEmbedded
	} else if m := NormalizeServeMode(string(cfg.Serve.Mode)); m != "" {
		cfg.Serve.Mode = m
	}
}

// DebounceWindow returns the parsed watcher quiescence window.
func (w WatchConfig) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// OptimizerEnabled reports whether Release/Profiling builds run wasm-opt.
func (o OptimizeConfig) OptimizerEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// Delays returns the parsed initial and max retry delays.
func (r RetryConfig) Delays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(r.InitialDelay)
	maxDelay, _ = time.ParseDuration(r.MaxDelay)
	return initial, maxDelay
}

// Retries returns the configured retry budget.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *r.MaxRetries
}

// GitignoreEnabled reports whether the watcher consults the workspace .gitignore.
func (w WatchConfig) GitignoreEnabled() bool {
	return w.UseGitignore == nil || *w.UseGitignore
}
