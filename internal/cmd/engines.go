package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/tern/internal/engine"
)

// NewEnginesCommand creates the engines command
func NewEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List available engines",
		Long: `List the builtin engines and every engine found in the engines directory.

An engine is either an executable called as "<engine> <src> <dst> [options...]"
that exits 0 when it converted the file and 1 when it declined, or a
"<name>.sh-template" file whose {src}, {dst} and {options} placeholders are
substituted and run with sh -c.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			names, err := engine.ListEngines(cfg.EnginesDir)
			if err != nil {
				return fmt.Errorf("failed to list engines: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Engines directory: %s\n", cfg.EnginesDir)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
}
