package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/tern/internal/models"
)

// colorScheme defines consistent colors for summary metrics.
// Green: success, red: failure, yellow: warning, cyan: labels.
// A disabled scheme renders plain text.
type colorScheme struct {
	enabled bool
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	bold    *color.Color
}

func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		enabled: enabled,
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
	if !enabled {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label, s.bold} {
			c.DisableColor()
		}
	}
	return s
}

func (s *colorScheme) header(text string) string {
	return s.bold.Sprint(text)
}

// metric colors "label: value" only when value is non-zero.
func (s *colorScheme) metric(label string, value int, c *color.Color) string {
	text := fmt.Sprintf("%s: %d", label, value)
	if value == 0 {
		return text
	}
	return c.Sprint(text)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case models.StatusConverted:
		return color.New(color.FgGreen)
	case models.StatusFailed, models.StatusFaulted:
		return color.New(color.FgRed)
	case models.StatusPlanned:
		return color.New(color.FgCyan)
	case models.StatusSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlack)
	}
}
