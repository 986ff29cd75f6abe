// Package staleness decides whether a source file needs to be converted.
package staleness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/tern/internal/models"
)

// Verdict is the outcome of evaluating one candidate file.
type Verdict struct {
	Stale      bool
	Reason     string
	MTime      int64  // current source mtime, unix seconds
	OutputPath string // where the converted file belongs
}

// Staleness reasons
const (
	ReasonForced    = "forced"
	ReasonNoOutput  = "output missing"
	ReasonUntracked = "no tracked conversion"
	ReasonChanged   = "modified since last conversion"
	ReasonUpToDate  = "up to date"
)

// RequiresConversion reports whether sourceFile has to be converted for profile.
func RequiresConversion(sourceFile string, profile *models.Profile, force bool) (bool, error) {
	v, err := Evaluate(sourceFile, profile, force)
	if err != nil {
		return false, err
	}
	return v.Stale, nil
}

// Evaluate applies the staleness policy in order: a forced run is always
// stale; a missing output is stale; a tracked mtime that is not older than
// the current mtime is up to date; anything else is stale.
//
// The only I/O is a stat of sourceFile and of the derived output path.
// Failing to stat sourceFile is an IOFault.
func Evaluate(sourceFile string, profile *models.Profile, force bool) (Verdict, error) {
	info, err := os.Stat(sourceFile)
	if err != nil {
		return Verdict{}, models.NewFault(models.IOFault, "stat source", sourceFile, err)
	}

	outputPath, err := OutputPath(profile, sourceFile)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{
		MTime:      info.ModTime().Unix(),
		OutputPath: outputPath,
	}

	if force {
		v.Stale, v.Reason = true, ReasonForced
		return v, nil
	}

	if !exists(outputPath) {
		v.Stale, v.Reason = true, ReasonNoOutput
		return v, nil
	}

	tracked, ok := profile.TrackedMTime(sourceFile)
	switch {
	case !ok:
		v.Stale, v.Reason = true, ReasonUntracked
	case tracked < v.MTime:
		v.Stale, v.Reason = true, ReasonChanged
	default:
		v.Stale, v.Reason = false, ReasonUpToDate
	}

	return v, nil
}

// OutputPath maps sourceFile into profile.OutputRoot, keeping its path
// relative to SourceRoot and swapping the extension (the literal suffix
// after the last '.') for OutputFileExtension.
func OutputPath(profile *models.Profile, sourceFile string) (string, error) {
	rel, err := filepath.Rel(profile.SourceRoot, sourceFile)
	if err != nil {
		return "", models.NewFault(models.IOFault, "relate to source root", sourceFile, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.NewFault(models.IOFault, "relate to source root", sourceFile,
			fmt.Errorf("not inside %s", profile.SourceRoot))
	}

	if ext := models.FileExtension(rel); ext != "" {
		rel = strings.TrimSuffix(rel, "."+ext)
	}
	if profile.OutputFileExtension != "" {
		rel += "." + profile.OutputFileExtension
	}

	return filepath.Join(profile.OutputRoot, rel), nil
}

// exists reports false only for a definite "not found".
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
