package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tern/internal/models"
)

func readRunLog(t *testing.T, fl *FileLogger) string {
	t.Helper()
	require.NoError(t, fl.Close())
	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	return string(data)
}

func TestNewFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	fl, err := NewFileLoggerWithDir(dir)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.RunFile()), target)

	out := readRunLog(t, fl)
	assert.Contains(t, out, "=== tern Run Log ===")
	assert.Contains(t, out, "Started at:")
}

func TestFileLogger_Events(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	require.NoError(t, err)

	p := sampleProfile()
	p.Options = []string{"gfm"}
	p.Metadata = map[string]int64{"/in/a.md": 1}

	fl.LogProfileStart(p)
	fl.LogFileResult(models.FileResult{Status: models.StatusUpToDate, SourceFile: "/in/a.md"})
	fl.LogFileResult(models.FileResult{Status: models.StatusConverted, SourceFile: "/in/b.md", OutputFile: "/out/b.html"})
	fl.LogFileResult(models.FileResult{
		Status:     models.StatusFaulted,
		SourceFile: "/in/c.md",
		Error:      models.NewFault(models.EngineFault, "run engine", "/in/c.md", errors.New("boom")),
	})
	fl.LogProfileComplete(p, models.ProfileResult{Converted: 1, UpToDate: 1, Failed: 1})
	fl.LogSummary(models.RunResult{RunID: "run-1", TotalProfiles: 1, Converted: 1, UpToDate: 1, Failed: 1})

	out := readRunLog(t, fl)
	assert.Contains(t, out, "=== Profile #3 markdown (md -> html) ===")
	assert.Contains(t, out, "Options: gfm")
	assert.Contains(t, out, "Tracked files: 1")
	assert.NotContains(t, out, "/in/a.md", "up-to-date files are debug only")
	assert.Contains(t, out, "CONVERTED  /in/b.md -> /out/b.html")
	assert.Contains(t, out, "[WARN] FAULTED    /in/c.md")
	assert.Contains(t, out, "EngineFault: run engine")
	assert.Contains(t, out, "Profile #3 complete: 1 converted, 1 up to date, 1 failed, 0 skipped")
	assert.Contains(t, out, "Run:          run-1")
	assert.Contains(t, out, "Status:       PARTIAL")
}

func TestFileLogger_SummaryStatus(t *testing.T) {
	tests := []struct {
		name   string
		result models.RunResult
		want   string
	}{
		{"success", models.RunResult{Converted: 2}, "SUCCESS"},
		{"nothing to do", models.RunResult{UpToDate: 2}, "SUCCESS"},
		{"failed", models.RunResult{Failed: 2}, "FAILED"},
		{"partial", models.RunResult{Converted: 1, Failed: 1}, "PARTIAL"},
		{"interrupted", models.RunResult{Converted: 1, Cancelled: true}, "INTERRUPTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl, err := NewFileLoggerWithDir(t.TempDir())
			require.NoError(t, err)
			fl.LogSummary(tt.result)
			assert.Contains(t, readRunLog(t, fl), "Status:       "+tt.want)
		})
	}
}

func TestFileLogger_WritesAfterCloseAreDropped(t *testing.T) {
	fl, err := NewFileLoggerWithDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fl.Close())

	assert.NotPanics(t, func() { fl.Warnf("late") })
	assert.NoError(t, fl.Close())
}
