// Package logger provides logging implementations for tern runs.
//
// The logger package offers structured logging of conversion progress at the
// profile, file and summary levels. Implementations are thread-safe and
// support various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/tern/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs conversion progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// fatih/color already honours NO_COLOR and non-TTY output
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// SetProfileTotal enables a progress line after each completed profile.
func (cl *ConsoleLogger) SetProfileTotal(total int) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.progress = NewProgressBar(total, 20, cl.colorOutput)
	cl.progress.SetPrefix("Profiles ")
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.LogDebug(fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.LogError(fmt.Sprintf(format, args...))
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] <message>"
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	coloredLevel := level
	if cl.colorOutput {
		coloredLevel = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), coloredLevel, message)
}

// LogProfileStart logs the start of a profile at INFO level.
// Format: "[HH:MM:SS] Starting profile #<id> <engine> (<ext> -> <ext>): <source> -> <output>"
func (cl *ConsoleLogger) LogProfileStart(profile models.Profile) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := profile.Label()
	if cl.colorOutput {
		label = color.New(color.Bold).Sprint(label)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting profile %s: %s -> %s\n",
		timestamp(), label, profile.SourceRoot, profile.OutputRoot)
}

// LogProfileComplete logs the completion of a profile at INFO level.
// Format: "[HH:MM:SS] Profile #<id> complete: <n> converted, <n> up to date, <n> failed (<duration>)"
func (cl *ConsoleLogger) LogProfileComplete(profile models.Profile, result models.ProfileResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if result.Error != nil {
		status := "skipped"
		if cl.colorOutput {
			status = color.New(color.FgRed).Sprint(status)
		}
		fmt.Fprintf(cl.writer, "[%s] Profile #%d %s: %v\n", ts, profile.ID, status, result.Error)
	} else {
		status := "complete"
		if cl.colorOutput {
			status = color.New(color.FgGreen).Sprint(status)
			if result.Failed > 0 {
				status = color.New(color.FgYellow).Sprint("complete")
			}
		}
		fmt.Fprintf(cl.writer, "[%s] Profile #%d %s: %s (%s)\n",
			ts, profile.ID, status, countsLine(result.Converted, result.UpToDate, result.Planned, result.Failed),
			formatDuration(result.Duration))
	}

	if cl.progress != nil {
		cl.progress.Increment()
		fmt.Fprintf(cl.writer, "[%s] %s\n", ts, cl.progress.Render())
	}
}

// LogFileResult logs one file outcome. Failures are logged at WARN level,
// conversions and dry-run plans at INFO and everything else at DEBUG.
// Format: "[HH:MM:SS] <STATUS> <source> -> <output>"
func (cl *ConsoleLogger) LogFileResult(result models.FileResult) {
	level := fileResultLevel(result.Status)
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := result.Status
	if cl.colorOutput {
		status = statusColor(result.Status).Sprint(status)
	}

	line := fmt.Sprintf("[%s] %s %s", timestamp(), status, result.SourceFile)
	if result.OutputFile != "" {
		line += " -> " + result.OutputFile
	}
	if result.Error != nil {
		line += fmt.Sprintf(" (%s: %v)", models.FaultKindOf(result.Error), result.Error)
	}
	fmt.Fprintln(cl.writer, line)
}

func fileResultLevel(status string) string {
	switch status {
	case models.StatusFailed, models.StatusFaulted:
		return "warn"
	case models.StatusConverted, models.StatusPlanned:
		return "info"
	default:
		return "debug"
	}
}

// LogSummary logs the run summary with completion statistics at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	scheme := newColorScheme(cl.colorOutput)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.header("=== Conversion Summary ==="))
	fmt.Fprintf(&sb, "[%s] Profiles: %d\n", ts, result.TotalProfiles)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.metric("Converted", result.Converted, scheme.success))
	fmt.Fprintf(&sb, "[%s] Up to date: %d\n", ts, result.UpToDate)
	if result.Planned > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.metric("Planned", result.Planned, scheme.label))
	}
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.metric("Failed", result.Failed, scheme.fail))
	if result.PersistenceFaults > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.metric("Metadata not saved", result.PersistenceFaults, scheme.fail))
	}
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))
	if result.Cancelled {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.warn.Sprint("Interrupted: in-flight conversions were completed"))
	}

	if len(result.FailedFiles) > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.fail.Sprint("Failed files:"))
		for _, fr := range result.FailedFiles {
			reason := fr.Status
			if fr.Error != nil {
				reason = models.FaultKindOf(fr.Error).String()
			}
			fmt.Fprintf(&sb, "[%s]   - %s: %s\n", ts, fr.SourceFile, reason)
		}
	}

	io.WriteString(cl.writer, sb.String())
}

func countsLine(converted, upToDate, planned, failed int) string {
	line := fmt.Sprintf("%d converted, %d up to date", converted, upToDate)
	if planned > 0 {
		line += fmt.Sprintf(", %d planned", planned)
	}
	return line + fmt.Sprintf(", %d failed", failed)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogProfileStart(models.Profile)                          {}
func (n *NoOpLogger) LogProfileComplete(models.Profile, models.ProfileResult) {}
func (n *NoOpLogger) LogFileResult(models.FileResult)                         {}
func (n *NoOpLogger) LogSummary(models.RunResult)                             {}
func (n *NoOpLogger) Debugf(string, ...interface{})                           {}
func (n *NoOpLogger) Infof(string, ...interface{})                            {}
func (n *NoOpLogger) Warnf(string, ...interface{})                            {}
