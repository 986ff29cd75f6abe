//go:build unix

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type convertOutcome struct {
	ok  bool
	err error
}

// A terminal interrupt goes to tern's foreground process group. Engines run
// in a group of their own so they finish the conversion they started.
func TestScriptEngine_RunsOutsideTernProcessGroup(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	src := filepath.Join(dir, "in.md")
	require.NoError(t, os.WriteFile(src, []byte("# x"), 0644))

	script := writeScript(t, dir, "slow", `echo $$ > `+pidFile+`.tmp && mv `+pidFile+`.tmp `+pidFile+`
sleep 1
exit 0`)
	inv := NewInvoker(NewRegistry(&countingLoader{eng: &ScriptEngine{Path: script}}))

	done := make(chan convertOutcome, 1)
	go func() {
		ok, err := inv.Convert(context.Background(), "slow", src, filepath.Join(dir, "out", "in.html"), nil)
		done <- convertOutcome{ok: ok, err: err}
	}()

	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "engine should lead its own process group")
	assert.NotEqual(t, syscall.Getpgrp(), pgid)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.True(t, out.ok)
	case <-time.After(10 * time.Second):
		t.Fatal("conversion did not finish")
	}
}
