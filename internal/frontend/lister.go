package frontend

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/harrison/tern/internal/coordinator"
)

// Lister prints every stored profile and quits.
type Lister struct {
	Out io.Writer
}

// Run fetches the profiles and writes them as a table.
func (l *Lister) Run(ctx context.Context, client *coordinator.Client) error {
	profiles, err := client.FetchProfiles(ctx)
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Fprintln(l.Out, "No profiles stored. Run 'tern profile add' or 'tern run --profile-manager'.")
		return client.Quit(ctx)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(l.Out, "%d profile(s)\n", len(profiles))

	tw := tabwriter.NewWriter(l.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGINE\tFROM\tTO\tSOURCE\tOUTPUT\tTRACKED\tOPTIONS\tIGNORE")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			p.ID, p.Engine, p.SourceFileExtension, p.OutputFileExtension,
			p.SourceRoot, p.OutputRoot, len(p.Metadata),
			dash(strings.Join(p.Options, " ")), dash(strings.Join(p.IgnorePatterns, " ")))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	return client.Quit(ctx)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
