package models

import "time"

// File conversion status constants
const (
	StatusConverted = "CONVERTED"  // Engine reported success, metadata upserted
	StatusUpToDate  = "UP-TO-DATE" // Not stale, engine not invoked
	StatusPlanned   = "PLANNED"    // Stale, but dry-run mode
	StatusFailed    = "FAILED"     // Engine returned false
	StatusFaulted   = "FAULTED"    // IOFault or EngineFault
	StatusSkipped   = "SKIPPED"    // Cancellation stopped the file before it started
)

// FileResult is the outcome of one candidate file.
type FileResult struct {
	ProfileID  int64
	SourceFile string
	OutputFile string
	Status     string
	Error      error // Fault for StatusFaulted, nil otherwise
	Duration   time.Duration
}

// Failed reports whether the file was attempted and did not convert.
func (r FileResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusFaulted
}

// ProfileResult aggregates file results for one profile.
type ProfileResult struct {
	ProfileID int64
	Converted int
	UpToDate  int
	Planned   int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Error     error // WalkFault that prevented the profile from running
}

// RunResult represents the aggregate result of one conversion run.
type RunResult struct {
	RunID             string
	TotalProfiles     int
	Converted         int
	UpToDate          int
	Planned           int
	Failed            int
	Skipped           int
	PersistenceFaults int
	Cancelled         bool
	Duration          time.Duration
	Profiles          []ProfileResult
	FailedFiles       []FileResult
}

// Add folds one file result into the run totals.
func (r *RunResult) Add(fr FileResult) {
	switch fr.Status {
	case StatusConverted:
		r.Converted++
	case StatusUpToDate:
		r.UpToDate++
	case StatusPlanned:
		r.Planned++
	case StatusFailed, StatusFaulted:
		r.Failed++
		r.FailedFiles = append(r.FailedFiles, fr)
	case StatusSkipped:
		r.Skipped++
	}
}

// Add folds one file result into the profile totals.
func (r *ProfileResult) Add(fr FileResult) {
	switch fr.Status {
	case StatusConverted:
		r.Converted++
	case StatusUpToDate:
		r.UpToDate++
	case StatusPlanned:
		r.Planned++
	case StatusFailed, StatusFaulted:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// RunRecord is the persisted summary of one conversion run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Converted  int
	UpToDate   int
	Failed     int
	Cancelled  bool
}
