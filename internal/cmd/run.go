package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/tern/internal/config"
	"github.com/harrison/tern/internal/coordinator"
	"github.com/harrison/tern/internal/dispatch"
	"github.com/harrison/tern/internal/engine"
	"github.com/harrison/tern/internal/filelock"
	"github.com/harrison/tern/internal/frontend"
	"github.com/harrison/tern/internal/interrupt"
	"github.com/harrison/tern/internal/logger"
	"github.com/harrison/tern/internal/models"
	"github.com/harrison/tern/internal/store"
	"github.com/harrison/tern/internal/watch"
)

// watchSettle folds a burst of source changes into one rerun.
const watchSettle = 500 * time.Millisecond

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert every stale file of every profile",
		Long: `Run opens the profile store and converts every source file whose output is
missing or older than its last recorded conversion.

When the store does not exist yet, or --profile-manager is given, run starts
the interactive profile manager instead.

Configuration is loaded from $TERN_HOME/config.yaml if present.
CLI flags override configuration file settings.

Press Ctrl-C to stop: conversions already running finish and their results
are recorded before tern exits.

Examples:
  tern run                       # Convert stale files
  tern run --dry-run             # List what would be converted
  tern run --force               # Convert everything
  tern run --profile-manager     # Add profiles interactively
  tern run --watch               # Keep converting as sources change
  tern run --sequential-profiles --max-workers 2`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	cmd.Flags().Bool("profile-manager", false, "Start the interactive profile manager")
	cmd.Flags().Bool("force", false, "Convert every file regardless of staleness")
	cmd.Flags().Bool("hidden", false, "Include hidden files and directories")
	cmd.Flags().Bool("dry-run", false, "Report stale files without converting them")
	cmd.Flags().Bool("sequential-profiles", false, "Convert one profile at a time")
	cmd.Flags().Bool("sequential-files", false, "Convert one file of a profile at a time")
	cmd.Flags().Int("max-workers", 0, "Maximum concurrent conversions (0 = number of CPUs)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().Bool("verbose", false, "Show up-to-date files and other debug output")
	cmd.Flags().Bool("watch", false, "After converting, wait for source changes and convert again")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mode := coordinator.DecideMode(st.Created(), cfg.ProfileManager)
	if mode == coordinator.WriteSession {
		return runProfileManager(ctx, cmd, cfg, st)
	}
	return runConversion(ctx, cmd, cfg, st)
}

func runProfileManager(ctx context.Context, cmd *cobra.Command, cfg *config.Config, st *store.Store) error {
	in := cmd.InOrStdin()
	if in == os.Stdin && !frontend.IsInteractive() {
		if st.Created() {
			return fmt.Errorf("store %s was just created and stdin is not a terminal: add profiles with 'tern profile add' or 'tern profile import'", cfg.StorePath)
		}
		return errors.New("the profile manager needs a terminal on stdin")
	}

	prompt := frontend.NewPrompt(in, cmd.OutOrStdout(), cfg.EnginesDir)
	return coordinator.RunWriteSession(ctx, st, diagnostics(cmd, cfg), prompt)
}

func runConversion(ctx context.Context, cmd *cobra.Command, cfg *config.Config, st *store.Store) error {
	lock, err := filelock.AcquireRunLock(cfg.StorePath)
	if err != nil {
		if errors.Is(err, filelock.ErrHeld) {
			return fmt.Errorf("another tern run is using %s", cfg.StorePath)
		}
		return err
	}
	defer lock.Unlock()

	consoleLog := diagnostics(cmd, cfg)

	var runLog logger.Sink = consoleLog
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		runLog = logger.Multi{consoleLog, fileLog}
	}

	flag := &interrupt.Flag{}
	stop := interrupt.Watch(flag, cmd.ErrOrStderr())
	defer stop()

	invoker := engine.NewInvoker(engine.NewRegistry(engine.NewDirLoader(cfg.EnginesDir)))
	policy := dispatch.Policy{
		ParallelProfiles: cfg.Concurrency.ParallelProfiles,
		ParallelFiles:    cfg.Concurrency.ParallelFiles,
		MaxWorkers:       cfg.Concurrency.MaxWorkers,
		MaxProfiles:      cfg.Concurrency.MaxProfiles,
		IncludeHidden:    cfg.IncludeHidden,
		Force:            cfg.Force,
		DryRun:           cfg.DryRun,
	}

	var profiles []models.Profile
	runner := func(ctx context.Context, sink *coordinator.Client, fetched []models.Profile) models.RunResult {
		profiles = fetched
		if len(fetched) == 0 {
			runLog.Warnf("No profiles stored in %s. Add one with 'tern profile add' or 'tern run --profile-manager'.", cfg.StorePath)
		}
		consoleLog.SetProfileTotal(len(fetched))
		pool := dispatch.NewPool(invoker, sink, flag, runLog, policy)
		runLog.Debugf("Converting %d profile(s) with %d worker(s)", len(fetched), pool.Workers())
		return pool.Run(ctx, fetched)
	}

	watching, _ := cmd.Flags().GetBool("watch")
	for {
		result, err := coordinator.RunConvertSession(ctx, st, runLog, runner)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		runLog.LogSummary(result)

		if !watching || flag.IsSet() {
			break
		}

		ev, ok, err := waitForChange(ctx, profiles, cfg.IncludeHidden, flag, runLog)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		runLog.Infof("Source %s %s, converting", ev.Path, ev.Op)
	}

	// Individual file failures never change the exit status.
	if cfg.LogDir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", cfg.LogDir)
	}
	return nil
}

// waitForChange blocks until a source file of profiles changes. It returns
// false when the interrupt flag is set first.
func waitForChange(ctx context.Context, profiles []models.Profile, includeHidden bool, flag *interrupt.Flag, log logger.Sink) (watch.Event, bool, error) {
	w, err := watch.New(profiles, includeHidden)
	if err != nil {
		return watch.Event{}, false, fmt.Errorf("failed to watch sources: %w", err)
	}
	defer w.Close()

	stopErrors := make(chan struct{})
	defer close(stopErrors)
	go func() {
		for {
			select {
			case err := <-w.Errors():
				log.Warnf("Watch error: %v", err)
			case <-stopErrors:
				return
			}
		}
	}()

	log.Infof("Watching %d profile(s) for changes. Press Ctrl-C to stop.", len(profiles))
	ev, ok := w.Next(ctx, flag.Done(), watchSettle)
	return ev, ok, nil
}
