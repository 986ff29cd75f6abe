// Package walker enumerates the source files of a profile.
//
// A walk starts at the profile's source root and yields every regular file
// whose extension equals the profile's source extension, skipping hidden
// entries and anything matched by the profile's ignore patterns. Directories
// that are hidden or ignored are pruned as a whole.
package walker

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/harrison/tern/internal/models"
)

// Walker walks one profile's source tree.
type Walker struct {
	root          string
	extension     string
	includeHidden bool
	patterns      []string

	// OnError receives a WalkFault for every entry that could not be read.
	// The walk continues past it.
	OnError func(err error)
}

// New builds a walker for profile. Invalid ignore patterns are rejected here
// as a WalkFault so a broken profile fails before any file is touched.
func New(profile *models.Profile, includeHidden bool) (*Walker, error) {
	patterns := make([]string, 0, len(profile.IgnorePatterns))
	for _, p := range profile.IgnorePatterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		p = strings.TrimPrefix(p, "./")
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, models.NewFault(models.WalkFault, "compile ignore pattern", profile.SourceRoot,
				fmt.Errorf("invalid pattern %q", p))
		}
		patterns = append(patterns, p)
	}

	return &Walker{
		root:          profile.SourceRoot,
		extension:     profile.SourceFileExtension,
		includeHidden: includeHidden,
		patterns:      patterns,
	}, nil
}

// Walk is shorthand for New followed by Files.
func Walk(profile *models.Profile, includeHidden bool) (iter.Seq[string], error) {
	w, err := New(profile, includeHidden)
	if err != nil {
		return nil, err
	}
	return w.Files(), nil
}

// Files returns the candidate files. Each range over the sequence walks the
// tree again; stopping the range stops the walk.
func (w *Walker) Files() iter.Seq[string] {
	return func(yield func(string) bool) {
		// A symlinked root is followed; paths are yielded under w.root so
		// they relate to the profile's source root as configured.
		walkRoot := w.root
		if resolved, err := filepath.EvalSymlinks(w.root); err == nil {
			walkRoot = resolved
		}

		_ = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				w.report(path, err)
				if d != nil && d.IsDir() && path != walkRoot {
					return filepath.SkipDir
				}
				return nil
			}

			if path == walkRoot {
				return nil
			}

			relPath, err := filepath.Rel(walkRoot, path)
			if err != nil {
				w.report(path, err)
				return nil
			}
			rel := filepath.ToSlash(relPath)

			if d.IsDir() {
				if w.excluded(rel, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if w.excluded(rel, d.Name()) || !w.regular(path, d) {
				return nil
			}
			if models.FileExtension(d.Name()) != w.extension || !strings.Contains(d.Name(), ".") {
				return nil
			}

			if !yield(filepath.Join(w.root, relPath)) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Match reports whether rel, a slash-separated path relative to the source
// root, is removed by the ignore patterns.
func (w *Walker) Match(rel string) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}

func (w *Walker) excluded(rel, name string) bool {
	if !w.includeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return w.Match(rel)
}

// regular follows a symlink once to decide whether it names a regular file.
func (w *Walker) regular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		w.report(path, err)
		return false
	}
	return info.Mode().IsRegular()
}

func (w *Walker) report(path string, err error) {
	if w.OnError != nil {
		w.OnError(models.NewFault(models.WalkFault, "read", path, err))
	}
}
