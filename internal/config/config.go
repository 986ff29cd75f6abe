package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConcurrencyConfig controls how the dispatch pool fans out
type ConcurrencyConfig struct {
	// ParallelProfiles converts several profiles at once
	ParallelProfiles bool `yaml:"parallel_profiles"`

	// ParallelFiles converts several files of one profile at once
	ParallelFiles bool `yaml:"parallel_files"`

	// MaxWorkers bounds concurrent conversions across all profiles (0 = number of CPUs)
	MaxWorkers int `yaml:"max_workers"`

	// MaxProfiles bounds concurrent profiles when parallel (0 = unlimited)
	MaxProfiles int `yaml:"max_profiles"`
}

// Config represents tern configuration options
type Config struct {
	// StorePath is the SQLite database holding profiles and metadata
	StorePath string `yaml:"store_path"`

	// EnginesDir is the directory engines are loaded from
	EnginesDir string `yaml:"engines_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// ProfileManager forces a write session
	ProfileManager bool `yaml:"profile_manager"`

	// IncludeHidden walks hidden files and directories too
	IncludeHidden bool `yaml:"include_hidden"`

	// Force converts every file regardless of staleness
	Force bool `yaml:"force"`

	// DryRun reports stale files without converting them
	DryRun bool `yaml:"dry_run"`

	// Concurrency contains dispatch pool settings
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		StorePath:      "",
		EnginesDir:     DefaultEnginesDir(),
		LogLevel:       "info",
		LogDir:         ".tern/logs",
		ProfileManager: false,
		IncludeHidden:  false,
		Force:          false,
		DryRun:         false,
		Concurrency: ConcurrencyConfig{
			ParallelProfiles: true,
			ParallelFiles:    true,
			MaxWorkers:       0, // NumCPU
			MaxProfiles:      0, // Unlimited
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Strings override when non-empty
	if fileCfg.StorePath != "" {
		cfg.StorePath = fileCfg.StorePath
	}
	if fileCfg.EnginesDir != "" {
		cfg.EnginesDir = fileCfg.EnginesDir
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogDir != "" {
		cfg.LogDir = fileCfg.LogDir
	}

	// Booleans can only be switched on from the top level
	cfg.ProfileManager = cfg.ProfileManager || fileCfg.ProfileManager
	cfg.IncludeHidden = cfg.IncludeHidden || fileCfg.IncludeHidden
	cfg.Force = cfg.Force || fileCfg.Force
	cfg.DryRun = cfg.DryRun || fileCfg.DryRun

	// The concurrency section defaults to true for both parallel flags, so
	// only keys actually present in the file are applied
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, exists := rawMap["concurrency"]; exists && section != nil {
			sectionMap, _ := section.(map[string]interface{})
			conc := fileCfg.Concurrency

			if _, exists := sectionMap["parallel_profiles"]; exists {
				cfg.Concurrency.ParallelProfiles = conc.ParallelProfiles
			}
			if _, exists := sectionMap["parallel_files"]; exists {
				cfg.Concurrency.ParallelFiles = conc.ParallelFiles
			}
			if _, exists := sectionMap["max_workers"]; exists {
				cfg.Concurrency.MaxWorkers = conc.MaxWorkers
			}
			if _, exists := sectionMap["max_profiles"]; exists {
				cfg.Concurrency.MaxProfiles = conc.MaxProfiles
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from config.yaml in the specified tern home
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, "config.yaml"))
}

// Flags carries CLI overrides. Nil fields leave the configuration unchanged.
type Flags struct {
	StorePath          *string
	EnginesDir         *string
	LogDir             *string
	LogLevel           *string
	ProfileManager     *bool
	IncludeHidden      *bool
	Force              *bool
	DryRun             *bool
	SequentialProfiles *bool
	SequentialFiles    *bool
	MaxWorkers         *int
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(f Flags) {
	if f.StorePath != nil {
		c.StorePath = *f.StorePath
	}
	if f.EnginesDir != nil {
		c.EnginesDir = *f.EnginesDir
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.ProfileManager != nil {
		c.ProfileManager = *f.ProfileManager
	}
	if f.IncludeHidden != nil {
		c.IncludeHidden = *f.IncludeHidden
	}
	if f.Force != nil {
		c.Force = *f.Force
	}
	if f.DryRun != nil {
		c.DryRun = *f.DryRun
	}
	if f.SequentialProfiles != nil {
		c.Concurrency.ParallelProfiles = !*f.SequentialProfiles
	}
	if f.SequentialFiles != nil {
		c.Concurrency.ParallelFiles = !*f.SequentialFiles
	}
	if f.MaxWorkers != nil {
		c.Concurrency.MaxWorkers = *f.MaxWorkers
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Concurrency.MaxWorkers < 0 {
		return fmt.Errorf("concurrency.max_workers must be >= 0, got %d", c.Concurrency.MaxWorkers)
	}
	if c.Concurrency.MaxProfiles < 0 {
		return fmt.Errorf("concurrency.max_profiles must be >= 0, got %d", c.Concurrency.MaxProfiles)
	}

	if c.EnginesDir == "" {
		return fmt.Errorf("engines_dir cannot be empty")
	}

	return nil
}

// ResolveStorePath fills in the default store location when none is set.
func (c *Config) ResolveStorePath() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	path, err := DefaultStorePath()
	if err != nil {
		return "", err
	}
	c.StorePath = path
	return path, nil
}
