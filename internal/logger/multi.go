package logger

import "github.com/harrison/tern/internal/models"

// Sink is the set of events a run reports. ConsoleLogger, FileLogger and
// NoOpLogger all implement it.
type Sink interface {
	LogProfileStart(profile models.Profile)
	LogProfileComplete(profile models.Profile, result models.ProfileResult)
	LogFileResult(result models.FileResult)
	LogSummary(result models.RunResult)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Multi delegates every event to each of its loggers in order.
type Multi []Sink

func (m Multi) LogProfileStart(profile models.Profile) {
	for _, l := range m {
		l.LogProfileStart(profile)
	}
}

func (m Multi) LogProfileComplete(profile models.Profile, result models.ProfileResult) {
	for _, l := range m {
		l.LogProfileComplete(profile, result)
	}
}

func (m Multi) LogFileResult(result models.FileResult) {
	for _, l := range m {
		l.LogFileResult(result)
	}
}

func (m Multi) LogSummary(result models.RunResult) {
	for _, l := range m {
		l.LogSummary(result)
	}
}

func (m Multi) Debugf(format string, args ...interface{}) {
	for _, l := range m {
		l.Debugf(format, args...)
	}
}

func (m Multi) Infof(format string, args ...interface{}) {
	for _, l := range m {
		l.Infof(format, args...)
	}
}

func (m Multi) Warnf(format string, args ...interface{}) {
	for _, l := range m {
		l.Warnf(format, args...)
	}
}
