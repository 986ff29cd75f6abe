package engine

import (
	"context"
	"os/exec"
	"strings"
)

// TemplateSuffix marks a shell-template engine file.
const TemplateSuffix = ".sh-template"

// Template placeholders.
const (
	PlaceholderSource  = "{src}"
	PlaceholderOutput  = "{dst}"
	PlaceholderOptions = "{options}"
)

// shellMeta is every character EscapeShell prefixes with a backslash.
const shellMeta = "&;|><`$() \t\\'\"*?[]{}~#!"

// ShellEngine expands a one-line command template and runs it with sh -c.
type ShellEngine struct {
	Template string
	Shell    string // defaults to "sh"
}

// Convert renders the template and runs it.
func (e *ShellEngine) Convert(ctx context.Context, src, dst string, options []string) (bool, error) {
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	return runCommand(exec.CommandContext(ctx, shell, "-c", e.Render(src, dst, options)), src)
}

// Render substitutes the escaped source, destination and options into the
// template. Options are escaped one by one and joined with spaces.
func (e *ShellEngine) Render(src, dst string, options []string) string {
	escaped := make([]string, len(options))
	for i, opt := range options {
		escaped[i] = EscapeShell(opt)
	}

	return strings.NewReplacer(
		PlaceholderSource, EscapeShell(src),
		PlaceholderOutput, EscapeShell(dst),
		PlaceholderOptions, strings.Join(escaped, " "),
	).Replace(strings.TrimSpace(e.Template))
}

// EscapeShell makes s a single literal word for sh. Each character of
// shellMeta is prefixed with a backslash. A newline cannot be escaped that
// way (backslash-newline is a line continuation), so it is emitted inside
// single quotes.
func EscapeShell(s string) string {
	if !strings.ContainsAny(s, shellMeta+"\n") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r == '\n':
			sb.WriteString("'\n'")
			continue
		case strings.ContainsRune(shellMeta, r):
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
