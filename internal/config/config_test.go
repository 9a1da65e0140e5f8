package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load uses defaults when no config file exists
// - Load reads .callscope/config.yaml when present and merges with defaults
// - Environment variables override config file values
// - Load returns error for malformed YAML
// - Load returns error for invalid configuration values
// - Validate() accepts valid configuration
// - Validate() rejects bad glob patterns
// - Validate() rejects negative workers, non-positive size and timeout
// - Validate() rejects unknown entry point kinds
// - Validate() rejects non-positive impact thresholds
// - Validate() returns multiple errors for multiple invalid fields

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	// Test: Default() returns valid configuration
	cfg := Default()

	require.NotNil(t, cfg)

	// Verify build defaults
	assert.Equal(t, 0, cfg.Build.Workers)
	assert.Equal(t, 10, cfg.Build.MaxFileSizeMB)
	assert.Equal(t, 5000, cfg.Build.ParseTimeoutMS)
	assert.Equal(t, 10_000, cfg.Build.CacheCapacity)
	assert.Equal(t, 500, cfg.Build.WatchDebounceMS)

	// Verify derived accessors
	assert.Equal(t, int64(10<<20), cfg.Build.MaxFileSize())
	assert.Equal(t, 5*time.Second, cfg.Build.ParseTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Build.WatchDebounce())

	// Verify impact defaults
	assert.Equal(t, 3, cfg.Impact.SevereEntryPoints)
	assert.Equal(t, 10, cfg.Impact.SevereCallers)

	// Verify paths have reasonable defaults
	assert.Empty(t, cfg.Paths.Include)
	assert.NotEmpty(t, cfg.Paths.Ignore)
	assert.Contains(t, cfg.Paths.Ignore, "node_modules/**")

	// Verify default config passes validation
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestLoadConfig_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	// Test: Load from directory with no config file returns defaults
	tempDir := t.TempDir()

	loader := NewLoader(tempDir)
	cfg, err := loader.Load()

	require.NoError(t, err)
	require.NotNil(t, cfg)

	expected := Default()
	assert.Equal(t, expected.Build, cfg.Build)
	assert.Equal(t, expected.Impact, cfg.Impact)
	assert.Equal(t, expected.Paths.Ignore, cfg.Paths.Ignore)
}

func TestLoadConfig_LoadsFromConfigYaml(t *testing.T) {
	// Test: Load from .callscope/config.yaml and merge with defaults
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, DirName)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `
paths:
  include:
    - "src/**"
  ignore:
    - "node_modules/**"
    - "generated/**"

build:
  workers: 4
  parse_timeout_ms: 2000

analysis:
  sensitive_tables:
    - users
    - payment_methods
  entry_point_decorators:
    "@job": scheduled-job

impact:
  severe_entry_points: 5
`

	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := NewLoader(tempDir).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**"}, cfg.Paths.Include)
	assert.Equal(t, []string{"node_modules/**", "generated/**"}, cfg.Paths.Ignore)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, 2000, cfg.Build.ParseTimeoutMS)
	assert.Equal(t, []string{"users", "payment_methods"}, cfg.Analysis.SensitiveTables)
	assert.Equal(t, "scheduled-job", cfg.Analysis.EntryPointDecorators["@job"])
	assert.Equal(t, 5, cfg.Impact.SevereEntryPoints)

	// Unset keys keep their defaults.
	assert.Equal(t, 10, cfg.Build.MaxFileSizeMB)
	assert.Equal(t, 10, cfg.Impact.SevereCallers)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	// Test: CALLSCOPE_* environment variables win over the file
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, DirName)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `
build:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644))

	t.Setenv("CALLSCOPE_BUILD_WORKERS", "8")
	t.Setenv("CALLSCOPE_IMPACT_SEVERE_CALLERS", "25")

	cfg, err := NewLoader(tempDir).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Build.Workers, "env beats the file")
	assert.Equal(t, 25, cfg.Impact.SevereCallers, "env beats the default")
}

func TestLoadConfig_MalformedYaml(t *testing.T) {
	// Test: malformed YAML is an error, not silently ignored
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, DirName)
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("build: [not: closed"), 0644))

	_, err := NewLoader(tempDir).Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	// Test: values that fail validation surface as load errors
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, DirName)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `
build:
  max_file_size_mb: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644))

	_, err := NewLoader(tempDir).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFileSize)
}

func TestValidate_AcceptsValidConfiguration(t *testing.T) {
	cfg := Default()
	cfg.Paths.Include = []string{"src/**", "lib/**/*.ts"}
	cfg.Analysis.SensitiveTables = []string{"users"}
	cfg.Analysis.EntryPointDecorators = map[string]string{"@Job": "scheduled-job"}

	assert.NoError(t, Validate(cfg))
}

func TestValidate_RejectsBadPattern(t *testing.T) {
	cfg := Default()
	cfg.Paths.Include = []string{"src/[unclosed"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestValidate_RejectsBadBuildValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"negative workers", func(c *Config) { c.Build.Workers = -1 }, ErrInvalidWorkers},
		{"zero file size", func(c *Config) { c.Build.MaxFileSizeMB = 0 }, ErrInvalidFileSize},
		{"zero timeout", func(c *Config) { c.Build.ParseTimeoutMS = 0 }, ErrInvalidTimeout},
		{"negative cache", func(c *Config) { c.Build.CacheCapacity = -5 }, ErrInvalidCacheCapacity},
		{"negative debounce", func(c *Config) { c.Build.WatchDebounceMS = -1 }, ErrInvalidDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_RejectsUnknownEntryPointKind(t *testing.T) {
	cfg := Default()
	cfg.Analysis.EntryPointDecorators = map[string]string{"@Weird": "not-a-kind"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEntryPointKind)
}

func TestValidate_RejectsBadThresholds(t *testing.T) {
	cfg := Default()
	cfg.Impact.SevereEntryPoints = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestValidate_ReportsMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Build.MaxFileSizeMB = -1
	cfg.Build.ParseTimeoutMS = 0
	cfg.Impact.SevereCallers = -3

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_file_size_mb")
	assert.Contains(t, err.Error(), "parse_timeout_ms")
	assert.Contains(t, err.Error(), "severe_callers")
}

func TestDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/project", ".callscope"), Dir("/tmp/project"))
}
