package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/tern/internal/models"
)

// FileLogger logs conversion events to a timestamped run log in the log
// directory and keeps a latest.log symlink pointing at the most recent run.
// It is thread-safe and supports log level filtering.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .tern/logs/ at level "info".
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".tern", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== tern Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the run log being written.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.LogDebug(fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.LogInfo(fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.LogWarn(fmt.Sprintf(format, args...))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogProfileStart records the start of a profile.
func (fl *FileLogger) LogProfileStart(profile models.Profile) {
	if !fl.shouldLog("info") {
		return
	}

	var sb strings.Builder
	ts := timestamp()
	fmt.Fprintf(&sb, "[%s] === Profile %s ===\n", ts, profile.Label())
	fmt.Fprintf(&sb, "[%s] Source: %s\n", ts, profile.SourceRoot)
	fmt.Fprintf(&sb, "[%s] Output: %s\n", ts, profile.OutputRoot)
	if len(profile.Options) > 0 {
		fmt.Fprintf(&sb, "[%s] Options: %s\n", ts, strings.Join(profile.Options, " "))
	}
	if len(profile.IgnorePatterns) > 0 {
		fmt.Fprintf(&sb, "[%s] Ignore: %s\n", ts, strings.Join(profile.IgnorePatterns, " "))
	}
	fmt.Fprintf(&sb, "[%s] Tracked files: %d\n", ts, len(profile.Metadata))
	fl.writeRunLog(sb.String())
}

// LogProfileComplete records the totals of a finished profile.
func (fl *FileLogger) LogProfileComplete(profile models.Profile, result models.ProfileResult) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	if result.Error != nil {
		fl.writeRunLog(fmt.Sprintf("[%s] Profile #%d skipped: %v\n", ts, profile.ID, result.Error))
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Profile #%d complete: %s, %d skipped (%s)\n",
		ts, profile.ID, countsLine(result.Converted, result.UpToDate, result.Planned, result.Failed),
		result.Skipped, formatDuration(result.Duration)))
}

// LogFileResult records one file outcome. Every attempted file is written
// at INFO so the run log lists the full conversion history of a run.
func (fl *FileLogger) LogFileResult(result models.FileResult) {
	level := "info"
	switch result.Status {
	case models.StatusFailed, models.StatusFaulted:
		level = "warn"
	case models.StatusUpToDate:
		level = "debug"
	}
	if !fl.shouldLog(level) {
		return
	}

	line := fmt.Sprintf("[%s] [%s] %-10s %s", timestamp(), strings.ToUpper(level), result.Status, result.SourceFile)
	if result.OutputFile != "" {
		line += " -> " + result.OutputFile
	}
	if result.Duration > 0 {
		line += fmt.Sprintf(" (%.2fs)", result.Duration.Seconds())
	}
	if result.Error != nil {
		line += fmt.Sprintf("\n[%s]   %s: %v", timestamp(), models.FaultKindOf(result.Error), result.Error)
	}
	fl.writeRunLog(line + "\n")
}

// LogSummary records the run summary.
func (fl *FileLogger) LogSummary(result models.RunResult) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()

	status := "SUCCESS"
	switch {
	case result.Cancelled:
		status = "INTERRUPTED"
	case result.Failed > 0 && result.Converted == 0:
		status = "FAILED"
	case result.Failed > 0:
		status = "PARTIAL"
	}

	message := fmt.Sprintf(
		"\n[%s] === CONVERSION SUMMARY ===\n"+
			"[%s] Run:          %s\n"+
			"[%s] Profiles:     %d\n"+
			"[%s] Converted:    %d\n"+
			"[%s] Up to date:   %d\n"+
			"[%s] Planned:      %d\n"+
			"[%s] Failed:       %d\n"+
			"[%s] Skipped:      %d\n"+
			"[%s] Not recorded: %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s\n"+
			"[%s] Completed at: %s\n",
		ts,
		ts, result.RunID,
		ts, result.TotalProfiles,
		ts, result.Converted,
		ts, result.UpToDate,
		ts, result.Planned,
		ts, result.Failed,
		ts, result.Skipped,
		ts, result.PersistenceFaults,
		ts, result.Duration.Seconds(),
		ts, status,
		ts, time.Now().Format(time.RFC3339),
	)

	fl.writeRunLog(message)
}

// Close flushes and closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
