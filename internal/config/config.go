package config

import (
	"path/filepath"
	"time"

	"github.com/callscope/callscope/internal/extract"
)

// DirName is the per-project analysis directory holding the config file
// and the persisted call graph.
const DirName = ".callscope"

// Dir returns the analysis directory for a project root.
func Dir(rootDir string) string {
	return filepath.Join(rootDir, DirName)
}

// Config represents the complete callscope configuration.
// It can be loaded from .callscope/config.yaml with environment variable overrides.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Build    BuildConfig    `yaml:"build" mapstructure:"build"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Impact   ImpactConfig   `yaml:"impact" mapstructure:"impact"`
}

// PathsConfig defines which files to analyze and which to skip.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns to analyze; empty means every supported file
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// BuildConfig bounds the extraction pipeline.
type BuildConfig struct {
	Workers         int `yaml:"workers" mapstructure:"workers"`                     // extraction workers; 0 means one per CPU
	MaxFileSizeMB   int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`   // skip files larger than this
	ParseTimeoutMS  int `yaml:"parse_timeout_ms" mapstructure:"parse_timeout_ms"`   // per-file structural parse budget
	CacheCapacity   int `yaml:"cache_capacity" mapstructure:"cache_capacity"`       // extraction cache entries; 0 disables
	WatchDebounceMS int `yaml:"watch_debounce_ms" mapstructure:"watch_debounce_ms"` // watch-mode rebuild debounce
}

// AnalysisConfig tunes classification during builds and queries.
type AnalysisConfig struct {
	SensitiveTables      []string          `yaml:"sensitive_tables" mapstructure:"sensitive_tables"`             // tables the sensitive-only filter keeps
	EntryPointDecorators map[string]string `yaml:"entry_point_decorators" mapstructure:"entry_point_decorators"` // extra decorator -> entry point kind
}

// ImpactConfig places the severe blast-radius thresholds.
type ImpactConfig struct {
	SevereEntryPoints int `yaml:"severe_entry_points" mapstructure:"severe_entry_points"` // severe at this many affected entry points
	SevereCallers     int `yaml:"severe_callers" mapstructure:"severe_callers"`           // severe at this many direct callers
}

// MaxFileSize returns the build size limit in bytes.
func (c *BuildConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// ParseTimeout returns the per-file parse budget as a duration.
func (c *BuildConfig) ParseTimeout() time.Duration {
	return time.Duration(c.ParseTimeoutMS) * time.Millisecond
}

// WatchDebounce returns the watch-mode debounce as a duration.
func (c *BuildConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{},
			Ignore:  append([]string(nil), extract.DefaultIgnorePatterns...),
		},
		Build: BuildConfig{
			Workers:         0, // one per CPU
			MaxFileSizeMB:   10,
			ParseTimeoutMS:  5000,
			CacheCapacity:   10_000,
			WatchDebounceMS: 500,
		},
		Analysis: AnalysisConfig{
			SensitiveTables:      []string{},
			EntryPointDecorators: map[string]string{},
		},
		Impact: ImpactConfig{
			SevereEntryPoints: 3,
			SevereCallers:     10,
		},
	}
}
