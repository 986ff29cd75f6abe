package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/tern/internal/config"
	"github.com/harrison/tern/internal/logger"
	"github.com/harrison/tern/internal/store"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for tern
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tern",
		Short: "Incremental batch file conversion",
		Long: `tern keeps directories of converted files in sync with their sources.

Each profile names an engine, a source tree and an output tree. A run walks
every profile, converts the files whose sources changed since the last
successful conversion and records what it converted in a SQLite store.

Engines are executables or shell templates in the engines directory, or the
builtin "markdown" engine.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: $TERN_HOME/config.yaml)")
	cmd.PersistentFlags().String("store", "", "Path to the profile store (default: $TERN_HOME/tern.db)")
	cmd.PersistentFlags().String("engines-dir", "", "Directory engines are loaded from")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewProfileCommand())
	cmd.AddCommand(NewEnginesCommand())
	cmd.AddCommand(NewRunsCommand())

	return cmd
}

// loadConfig reads the config file and applies the flags set on cmd.
// Flags that cmd does not define are ignored.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	cfg.MergeWithFlags(config.Flags{
		StorePath:          stringFlag(cmd, "store"),
		EnginesDir:         stringFlag(cmd, "engines-dir"),
		LogDir:             stringFlag(cmd, "log-dir"),
		LogLevel:           stringFlag(cmd, "log-level"),
		ProfileManager:     boolFlag(cmd, "profile-manager"),
		IncludeHidden:      boolFlag(cmd, "hidden"),
		Force:              boolFlag(cmd, "force"),
		DryRun:             boolFlag(cmd, "dry-run"),
		SequentialProfiles: boolFlag(cmd, "sequential-profiles"),
		SequentialFiles:    boolFlag(cmd, "sequential-files"),
		MaxWorkers:         intFlag(cmd, "max-workers"),
	})

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.ResolveStorePath(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// openStore opens the configured store. Failing to open it is fatal.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// diagnostics returns the console logger on the command's error stream.
func diagnostics(cmd *cobra.Command, cfg *config.Config) *logger.ConsoleLogger {
	return logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
}

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}
