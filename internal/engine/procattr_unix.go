//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own process group so a terminal interrupt sent to
// tern's foreground group does not reach conversions already running.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
