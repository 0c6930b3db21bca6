package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

// DefaultFileName is looked up in the working directory when WASMRUN_CONFIG is unset.
const DefaultFileName = "wasmrun.yaml"

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "WASMRUN_CONFIG"

// Config represents the wasmrun configuration file.
type Config struct {
	Frontend FrontendConfig `yaml:"frontend"`
	Backend  BackendConfig  `yaml:"backend"`
	Build    BuildConfig    `yaml:"build"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Style    StyleConfig    `yaml:"style"`
	Watch    WatchConfig    `yaml:"watch"`
	Serve    ServeConfig    `yaml:"serve"`
}

// FrontendConfig selects the unit compiled to WebAssembly and its web assets.
type FrontendConfig struct {
	Unit      string `yaml:"unit,omitempty"`       // module path or directory name; empty = unit owning the working dir
	Package   string `yaml:"package,omitempty"`    // package inside the unit to compile, default "."
	Index     string `yaml:"index,omitempty"`      // entry document relative to the unit dir
	StaticDir string `yaml:"static_dir,omitempty"` // copied into the output dir when no index exists
}

// BackendConfig designates the optional backend unit for the external-backend serve mode.
type BackendConfig struct {
	Unit    string   `yaml:"unit,omitempty"`
	Package string   `yaml:"package,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// BuildConfig controls the compiler invocation.
type BuildConfig struct {
	Path      string    `yaml:"path,omitempty"`       // output directory relative to the workspace root
	TargetDir string    `yaml:"target_dir,omitempty"` // intermediate artifacts, ignored by the watcher
	Toolchain Toolchain `yaml:"toolchain,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	Env       []string  `yaml:"env,omitempty"` // extra KEY=VALUE pairs for the compiler
}

// OptimizeConfig controls the wasm-opt step for Release and Profiling builds.
type OptimizeConfig struct {
	Enabled   *bool       `yaml:"enabled,omitempty"`
	Binary    string      `yaml:"binary,omitempty"`
	ExtraArgs []string    `yaml:"extra_args,omitempty"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig configures retries of transient optimizer failures.
type RetryConfig struct {
	MaxRetries   *int             `yaml:"max_retries,omitempty"`
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
}

// StyleConfig controls stylesheet compilation during post-build.
type StyleConfig struct {
	LookupDirs []string `yaml:"lookup_dirs,omitempty"`
	SassBinary string   `yaml:"sass_binary,omitempty"`
}

// WatchConfig controls the debounced watcher.
type WatchConfig struct {
	Debounce     string   `yaml:"debounce,omitempty"`
	ExtraPaths   []string `yaml:"extra_paths,omitempty"`
	UseGitignore *bool    `yaml:"use_gitignore,omitempty"`
}

// ServeConfig controls the dev loop.
type ServeConfig struct {
	IP             string    `yaml:"ip,omitempty"`
	Port           int       `yaml:"port,omitempty"`
	Mode           ServeMode `yaml:"mode,omitempty"`
	FullRestart    bool      `yaml:"full_restart,omitempty"`
	RestartCommand []string  `yaml:"restart_command,omitempty"`
	LiveReload     bool      `yaml:"livereload,omitempty"`
	Metrics        bool      `yaml:"metrics,omitempty"`
}

// Load reads the configuration from path. A missing file yields the defaults so that a
// project without wasmrun.yaml builds with zero configuration.
func Load(path string) (*Config, error) {
	return load("", path)
}

func load(dir, path string) (*Config, error) {
	if err := loadEnvFile(dir); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("Configuration file not found; using defaults", "path", path)
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Build()
	default:
		if err := decode(bytes.NewReader([]byte(os.ExpandEnv(string(data)))), cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config file").
				WithContext("path", path).Build()
		}
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the file named by WASMRUN_CONFIG, or wasmrun.yaml, for an
// invocation in dir. Relative paths and the .env files resolve against dir; an
// empty dir is the working directory.
func LoadDefault(dir string) (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultFileName
	}
	if dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return load(dir, path)
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}
