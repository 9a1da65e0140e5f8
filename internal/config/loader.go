package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CALLSCOPE_*)
// 2. Config file (.callscope/config.yaml or .callscope/config.yml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	// Set up config file search
	configDir := filepath.Join(l.rootDir, DirName)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	// Enable environment variable overrides
	v.SetEnvPrefix("CALLSCOPE")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., CALLSCOPE_BUILD_WORKERS)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables to config keys
	// Build configuration
	v.BindEnv("build.workers")
	v.BindEnv("build.max_file_size_mb")
	v.BindEnv("build.parse_timeout_ms")
	v.BindEnv("build.cache_capacity")
	v.BindEnv("build.watch_debounce_ms")

	// Analysis configuration
	v.BindEnv("analysis.sensitive_tables")

	// Impact configuration
	v.BindEnv("impact.severe_entry_points")
	v.BindEnv("impact.severe_callers")

	// Set defaults in viper
	setDefaults(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Some other error occurred while reading the config file
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate the configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Paths defaults
	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	// Build defaults
	v.SetDefault("build.workers", defaults.Build.Workers)
	v.SetDefault("build.max_file_size_mb", defaults.Build.MaxFileSizeMB)
	v.SetDefault("build.parse_timeout_ms", defaults.Build.ParseTimeoutMS)
	v.SetDefault("build.cache_capacity", defaults.Build.CacheCapacity)
	v.SetDefault("build.watch_debounce_ms", defaults.Build.WatchDebounceMS)

	// Analysis defaults
	v.SetDefault("analysis.sensitive_tables", defaults.Analysis.SensitiveTables)
	v.SetDefault("analysis.entry_point_decorators", defaults.Analysis.EntryPointDecorators)

	// Impact defaults
	v.SetDefault("impact.severe_entry_points", defaults.Impact.SevereEntryPoints)
	v.SetDefault("impact.severe_callers", defaults.Impact.SevereCallers)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
