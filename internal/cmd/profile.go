package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/tern/internal/coordinator"
	"github.com/harrison/tern/internal/frontend"
	"github.com/harrison/tern/internal/models"
)

// NewProfileCommand creates the profile command group
func NewProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage conversion profiles",
		Long: `Create and inspect the conversion profiles held in the store.

Every subcommand runs a write session against the store, so profiles can be
added before the first conversion run.`,
	}

	cmd.AddCommand(newProfileAddCommand())
	cmd.AddCommand(newProfileImportCommand())
	cmd.AddCommand(newProfileListCommand())

	return cmd
}

func newProfileAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one profile",
		Example: `  tern profile add --engine markdown --source ./notes --output ./site --from md --to html
  tern profile add --engine pandoc --source docs --output pdf --from md --to pdf --option=--toc --ignore 'drafts/**'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := models.Profile{}
			p.Engine, _ = cmd.Flags().GetString("engine")
			p.SourceRoot, _ = cmd.Flags().GetString("source")
			p.OutputRoot, _ = cmd.Flags().GetString("output")
			p.SourceFileExtension, _ = cmd.Flags().GetString("from")
			p.OutputFileExtension, _ = cmd.Flags().GetString("to")
			p.Options, _ = cmd.Flags().GetStringArray("option")
			p.IgnorePatterns, _ = cmd.Flags().GetStringArray("ignore")

			normalized, err := frontend.Normalize(p)
			if err != nil {
				return err
			}
			return runWriteSession(cmd, &frontend.Static{
				Profiles: []models.Profile{normalized},
				Out:      cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().String("engine", "", "Engine name (see 'tern engines')")
	cmd.Flags().String("source", "", "Source root directory")
	cmd.Flags().String("output", "", "Output root directory")
	cmd.Flags().String("from", "", "Source file extension, without the dot")
	cmd.Flags().String("to", "", "Output file extension, without the dot")
	cmd.Flags().StringArray("option", nil, "Engine option (repeatable)")
	cmd.Flags().StringArray("ignore", nil, "Ignore glob relative to the source root (repeatable)")
	for _, name := range []string{"engine", "source", "output", "from", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newProfileImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <profiles.yaml>",
		Short: "Add every profile listed in a YAML file",
		Long: `Import reads a YAML list of profiles, either at the top level or under a
"profiles" key, and stores them in order. The first invalid profile stops
the import.

Example file:
  profiles:
    - engine: markdown
      source_root: ./notes
      output_root: ./site
      source_file_extension: md
      output_file_extension: html
      options: [gfm]
      ignore_patterns: ["drafts/**"]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := frontend.LoadProfiles(args[0])
			if err != nil {
				return err
			}
			return runWriteSession(cmd, &frontend.Static{Profiles: profiles, Out: cmd.OutOrStdout()})
		},
	}
}

func newProfileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWriteSession(cmd, &frontend.Lister{Out: cmd.OutOrStdout()})
		},
	}
}

// runWriteSession opens the store and drives frontEnd through the coordinator.
func runWriteSession(cmd *cobra.Command, frontEnd coordinator.FrontEnd) error {
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

	if err := coordinator.RunWriteSession(ctx, st, diagnostics(cmd, cfg), frontEnd); err != nil {
		return fmt.Errorf("profile session failed: %w", err)
	}
	return nil
}
