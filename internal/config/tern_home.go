package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the tern home directory.
const HomeEnv = "TERN_HOME"

// GetTernHome returns the tern home directory, creating it if needed.
// Priority order:
//  1. TERN_HOME environment variable (if set)
//  2. .tern in the current working directory
func GetTernHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ".tern")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create tern home directory: %w", err)
	}

	return home, nil
}

// DefaultStorePath returns $TERN_HOME/tern.db.
func DefaultStorePath() (string, error) {
	home, err := GetTernHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "tern.db"), nil
}

// DefaultConfigPath returns $TERN_HOME/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := GetTernHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// DefaultEnginesDir returns <user config dir>/tern/converters, or
// $TERN_HOME/converters when the platform has no user config dir.
func DefaultEnginesDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tern", "converters")
	}
	if home, err := GetTernHome(); err == nil {
		return filepath.Join(home, "converters")
	}
	return "converters"
}
