package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid path pattern")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidFileSize indicates a non-positive file size limit
	ErrInvalidFileSize = errors.New("invalid max file size")

	// ErrInvalidTimeout indicates a non-positive parse timeout
	ErrInvalidTimeout = errors.New("invalid parse timeout")

	// ErrInvalidCacheCapacity indicates a negative cache capacity
	ErrInvalidCacheCapacity = errors.New("invalid cache capacity")

	// ErrInvalidDebounce indicates a negative watch debounce
	ErrInvalidDebounce = errors.New("invalid watch debounce")

	// ErrInvalidEntryPointKind indicates an unknown entry point kind
	ErrInvalidEntryPointKind = errors.New("invalid entry point kind")

	// ErrInvalidThreshold indicates a non-positive blast-radius threshold
	ErrInvalidThreshold = errors.New("invalid impact threshold")
)

// entryPointKinds are the kinds a decorator mapping may target.
var entryPointKinds = map[string]bool{
	"http-handler":  true,
	"cli-command":   true,
	"event-handler": true,
	"test":          true,
	"scheduled-job": true,
}

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}
	if err := validateBuild(&cfg.Build); err != nil {
		errs = append(errs, err)
	}
	if err := validateAnalysis(&cfg.Analysis); err != nil {
		errs = append(errs, err)
	}
	if err := validateImpact(&cfg.Impact); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	// Patterns must compile with the same syntax discovery uses.
	for _, pattern := range cfg.Include {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: include %q: %v", ErrInvalidPattern, pattern, err))
		}
	}
	for _, pattern := range cfg.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: ignore %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateBuild(cfg *BuildConfig) error {
	var errs []error

	// Zero workers means one per CPU; only negative counts are invalid.
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if cfg.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size_mb must be positive, got %d", ErrInvalidFileSize, cfg.MaxFileSizeMB))
	}

	if cfg.ParseTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("%w: parse_timeout_ms must be positive, got %d", ErrInvalidTimeout, cfg.ParseTimeoutMS))
	}

	// Zero capacity disables caching; only negative is invalid.
	if cfg.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_capacity cannot be negative, got %d", ErrInvalidCacheCapacity, cfg.CacheCapacity))
	}

	if cfg.WatchDebounceMS < 0 {
		errs = append(errs, fmt.Errorf("%w: watch_debounce_ms cannot be negative, got %d", ErrInvalidDebounce, cfg.WatchDebounceMS))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateAnalysis(cfg *AnalysisConfig) error {
	var errs []error

	for decorator, kind := range cfg.EntryPointDecorators {
		if !entryPointKinds[kind] {
			errs = append(errs, fmt.Errorf("%w: decorator %q maps to %q (valid: http-handler, cli-command, event-handler, test, scheduled-job)",
				ErrInvalidEntryPointKind, decorator, kind))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateImpact(cfg *ImpactConfig) error {
	var errs []error

	if cfg.SevereEntryPoints <= 0 {
		errs = append(errs, fmt.Errorf("%w: severe_entry_points must be positive, got %d", ErrInvalidThreshold, cfg.SevereEntryPoints))
	}

	if cfg.SevereCallers <= 0 {
		errs = append(errs, fmt.Errorf("%w: severe_callers must be positive, got %d", ErrInvalidThreshold, cfg.SevereCallers))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
