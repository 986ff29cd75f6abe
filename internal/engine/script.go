package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harrison/tern/internal/models"
)

// stderrTail bounds how much engine stderr ends up in a fault.
const stderrTail = 512

// Exit statuses understood by script and shell engines.
const (
	ExitConverted = 0
	ExitDeclined  = 1
)

// ScriptEngine runs an executable as "<path> <src> <dst> <option>...".
// No shell is involved and arguments are passed verbatim.
type ScriptEngine struct {
	Path string
}

// Convert runs the script.
func (e *ScriptEngine) Convert(ctx context.Context, src, dst string, options []string) (bool, error) {
	args := append([]string{src, dst}, options...)
	return runCommand(exec.CommandContext(ctx, e.Path, args...), src)
}

// runCommand maps the process outcome to the engine contract: exit 0 is
// true, exit 1 is false, everything else is an EngineFault carrying the tail
// of stderr.
func runCommand(cmd *exec.Cmd, src string) (bool, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	detach(cmd)

	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == ExitDeclined {
			return false, nil
		}
		if tail := tail(stderr.String()); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
	}

	return false, models.NewFault(models.EngineFault, "run "+cmd.Path, src, err)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
