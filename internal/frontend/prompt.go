package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/tern/internal/coordinator"
	"github.com/harrison/tern/internal/engine"
	"github.com/harrison/tern/internal/models"
)

// LineReader reads user input a line at a time.
type LineReader interface {
	ReadString(delim byte) (string, error)
}

// Prompt asks for profiles on a terminal until the user is done.
type Prompt struct {
	in         LineReader
	out        io.Writer
	enginesDir string
}

// NewPrompt creates a Prompt. Colors are enabled only when out is a terminal.
func NewPrompt(in io.Reader, out io.Writer, enginesDir string) *Prompt {
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}
	return &Prompt{
		in:         bufio.NewReader(in),
		out:        out,
		enginesDir: enginesDir,
	}
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// errInputClosed ends the prompt loop when input runs out.
var errInputClosed = errors.New("input closed")

// Run asks for one profile at a time and stores it. End of input or a
// negative answer to "add another" sends quit.
func (p *Prompt) Run(ctx context.Context, client *coordinator.Client) error {
	bold := color.New(color.Bold)
	bold.Fprintln(p.out, "\ntern profile manager")
	fmt.Fprintln(p.out, strings.Repeat("-", 50))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		profile, err := p.ask(ctx, client)
		if errors.Is(err, errInputClosed) {
			return client.Quit(ctx)
		}
		if err != nil {
			return err
		}

		id, err := client.StoreProfile(ctx, profile)
		if err != nil {
			if models.FaultKindOf(err) != models.PersistenceFault || errors.Is(err, coordinator.ErrClosed) {
				return err
			}
			color.New(color.FgRed).Fprintf(p.out, "Profile not stored: %v\n", err)
		} else {
			profile.ID = id
			color.New(color.FgGreen).Fprintf(p.out, "Stored profile %s\n", profile.Label())
		}

		again, err := p.line("Add another profile? [y/N]: ")
		if err != nil && !errors.Is(err, errInputClosed) {
			return err
		}
		if err != nil || !strings.HasPrefix(strings.ToLower(again), "y") {
			return client.Quit(ctx)
		}
	}
}

func (p *Prompt) ask(ctx context.Context, client *coordinator.Client) (models.Profile, error) {
	var profile models.Profile

	name, err := p.chooseEngine(ctx, client)
	if err != nil {
		return profile, err
	}
	profile.Engine = name

	fields := []struct {
		label string
		dst   *string
	}{
		{"Source root", &profile.SourceRoot},
		{"Source file extension", &profile.SourceFileExtension},
		{"Output root", &profile.OutputRoot},
		{"Output file extension", &profile.OutputFileExtension},
	}
	for _, f := range fields {
		value, err := p.required(f.label + ": ")
		if err != nil {
			return profile, err
		}
		*f.dst = value
	}

	options, err := p.line("Options (space separated, optional): ")
	if err != nil {
		return profile, err
	}
	profile.Options = strings.Fields(options)

	patterns, err := p.line("Ignore patterns (space separated, optional): ")
	if err != nil {
		return profile, err
	}
	profile.IgnorePatterns = strings.Fields(patterns)

	return Normalize(profile)
}

// chooseEngine lists the engines already used by stored profiles and the
// engines available on disk, then reads a number or a name.
func (p *Prompt) chooseEngine(ctx context.Context, client *coordinator.Client) (string, error) {
	stored, err := client.FetchColumn(ctx, "engine")
	if err != nil {
		return "", err
	}
	available, err := engine.ListEngines(p.enginesDir)
	if err != nil {
		color.New(color.FgYellow).Fprintf(p.out, "Warning: %v\n", err)
		available = nil
	}

	yellow := color.New(color.FgYellow)
	if len(stored) > 0 {
		fmt.Fprintf(p.out, "Engines in use: %s\n", strings.Join(stored, ", "))
	}
	fmt.Fprintln(p.out, "Available engines:")
	for i, name := range available {
		fmt.Fprintf(p.out, "  %s %s\n", yellow.Sprintf("[%d]", i+1), name)
	}

	for {
		input, err := p.required("Engine (number or name): ")
		if err != nil {
			return "", err
		}
		if n, convErr := strconv.Atoi(input); convErr == nil {
			if n >= 1 && n <= len(available) {
				return available[n-1], nil
			}
			color.New(color.FgRed).Fprintf(p.out, "Invalid selection: must be between 1 and %d\n", len(available))
			continue
		}
		if err := engine.ValidateName(input); err != nil {
			color.New(color.FgRed).Fprintf(p.out, "%v\n", err)
			continue
		}
		return input, nil
	}
}

// required re-asks until the answer is not blank.
func (p *Prompt) required(label string) (string, error) {
	for {
		value, err := p.line(label)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
		color.New(color.FgRed).Fprintln(p.out, "A value is required.")
	}
}

func (p *Prompt) line(label string) (string, error) {
	color.New(color.FgCyan).Fprint(p.out, label)
	input, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) != "" {
			return strings.TrimSpace(input), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errInputClosed
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
