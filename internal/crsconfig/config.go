// Package crsconfig provides hierarchical configuration for the crs CLI
// using koanf. Configuration is loaded with priority: environment
// variables > project config (.crs/config.yml) > user config
// (os.UserConfigDir()/crs/config.yml) > defaults. Every field doubles as
// a CLI flag default, so a value set in config.yml only has to be
// repeated on the command line to override it for one run.
package crsconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration holds every setting exposed as a CLI flag, plus the
// ambient additions (Verbose, DryRun) a complete tool needs.
type Configuration struct {
	// Processes bounds concurrently running worker worktrees.
	Processes int `koanf:"processes"`

	// Propagate reports a confirmed regression as the answer for every
	// remaining target reachable from it.
	Propagate bool `koanf:"propagate"`

	// WorktreeLocation is where worker worktrees are created. Empty
	// means "under .crs/ inside the repository".
	WorktreeLocation string `koanf:"worktree_location"`

	// SearchMode selects the regression-search strategy: one of
	// exrpa-{long,short}-{bin,lin,mul}, or "bisect".
	SearchMode string `koanf:"search_mode"`

	// Interrupt enables cancelling a superseded in-flight test.
	Interrupt bool `koanf:"interrupt"`

	// ExtendedSearch enables Extended RPA's parent-verification pass.
	ExtendedSearch bool `koanf:"extended_search"`

	// LogDir is the run-log directory; empty disables run logging.
	LogDir string `koanf:"log_dir"`

	// Verbose turns on debug-level logging of DVCS and scheduler
	// internals.
	Verbose bool `koanf:"verbose"`

	// DryRun computes the commit graph and reports what would run
	// (commit, source and target counts) without dispatching any worker.
	DryRun bool `koanf:"dry_run"`
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default:
	// .crs/config.yml), mainly for tests.
	ProjectConfigPath string
	// WarningWriter receives warnings about malformed config files.
	// Defaults to os.Stderr.
	WarningWriter io.Writer
}

// Defaults returns the configuration values used before any config file
// or environment variable is applied.
func Defaults() map[string]any {
	return map[string]any{
		"processes":       1,
		"propagate":       true,
		"search_mode":     "exrpa-long-bin",
		"interrupt":       false,
		"extended_search": true,
		"log_dir":         "",
		"verbose":         false,
		"dry_run":         false,
	}
}

// Load loads configuration from user, project, and environment sources,
// in that priority order (environment wins).
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options.
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")
	warningWriter := opts.WarningWriter
	if warningWriter == nil {
		warningWriter = os.Stderr
	}

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if userPath, err := UserConfigPath(); err == nil {
		if err := loadYAMLIfExists(k, userPath, "user", warningWriter); err != nil {
			return nil, err
		}
	}

	projectPath := ProjectConfigPath()
	if opts.ProjectConfigPath != "" {
		projectPath = opts.ProjectConfigPath
	}
	if err := loadYAMLIfExists(k, projectPath, "project", warningWriter); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("CRS_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadYAMLIfExists(k *koanf.Koanf, path, kind string, warningWriter io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		fmt.Fprintf(warningWriter, "Warning: failed to load %s config %s: %v\n", kind, path, err)
		return nil
	}
	return nil
}

// envTransform converts CRS_SEARCH_MODE into search_mode, matching
// koanf's "." delimiter convention for nested keys.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, "CRS_")
	return strings.ToLower(s)
}

var validSearchModes = map[string]bool{
	"exrpa-long-bin": true, "exrpa-long-lin": true, "exrpa-long-mul": true,
	"exrpa-short-bin": true, "exrpa-short-lin": true, "exrpa-short-mul": true,
	"bisect": true,
}

// Validate checks that a loaded Configuration's values are internally
// consistent, independent of any CLI-supplied overrides.
func Validate(cfg *Configuration) error {
	if cfg.Processes < 1 {
		return fmt.Errorf("processes must be at least 1, got %d", cfg.Processes)
	}
	if !validSearchModes[cfg.SearchMode] {
		return fmt.Errorf("unknown search_mode %q", cfg.SearchMode)
	}
	if cfg.WorktreeLocation != "" {
		if !filepath.IsAbs(cfg.WorktreeLocation) {
			return fmt.Errorf("worktree_location must be an absolute path, got %q", cfg.WorktreeLocation)
		}
	}
	return nil
}
