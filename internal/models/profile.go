package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Profile is a named conversion job: where to read, where to write, which
// engine converts each file and what was converted last time.
type Profile struct {
	ID                  int64            `yaml:"-"`
	Engine              string           `yaml:"engine"`
	SourceRoot          string           `yaml:"source_root"`
	OutputRoot          string           `yaml:"output_root"`
	SourceFileExtension string           `yaml:"source_file_extension"`
	OutputFileExtension string           `yaml:"output_file_extension"`
	Options             []string         `yaml:"options,omitempty"`
	IgnorePatterns      []string         `yaml:"ignore_patterns,omitempty"`
	Metadata            map[string]int64 `yaml:"-"` // source file -> last converted mtime (unix seconds)
}

// TrackedMTime returns the last converted mtime recorded for sourceFile.
func (p *Profile) TrackedMTime(sourceFile string) (int64, bool) {
	if p.Metadata == nil {
		return 0, false
	}
	mtime, ok := p.Metadata[sourceFile]
	return mtime, ok
}

// Snapshot returns a deep copy that workers can read without locking.
func (p Profile) Snapshot() Profile {
	cp := p
	if p.Options != nil {
		cp.Options = append([]string(nil), p.Options...)
	}
	if p.IgnorePatterns != nil {
		cp.IgnorePatterns = append([]string(nil), p.IgnorePatterns...)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]int64, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// Label is a short human-readable identifier used in logs.
func (p *Profile) Label() string {
	return fmt.Sprintf("#%d %s (%s -> %s)", p.ID, p.Engine, p.SourceFileExtension, p.OutputFileExtension)
}

// FileExtension returns the literal suffix after the last '.' of the base
// name of path, or "" when the base name has no dot.
func FileExtension(path string) string {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}

// MetadataUpdate is emitted after one successful file conversion.
type MetadataUpdate struct {
	ProfileID  int64
	SourceFile string
	MTime      int64
}
