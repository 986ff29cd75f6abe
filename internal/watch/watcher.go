// Package watch reports changes to the source trees of conversion profiles
// so a long-running tern can convert files as they are edited.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/tern/internal/models"
)

// Op is the kind of change observed on a source file.
type Op int

const (
	// Created indicates a new source file
	Created Op = iota
	// Written indicates a source file was written to
	Written
	// Removed indicates a source file was removed or renamed away
	Removed
)

// String returns a human-readable representation of the operation
func (op Op) String() string {
	switch op {
	case Created:
		return "created"
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one change to a file that some profile would convert.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// DefaultDebounceDelay coalesces the burst of writes an editor makes on save.
const DefaultDebounceDelay = 200 * time.Millisecond

// Watcher watches the source roots of a set of profiles.
type Watcher struct {
	watcher       *fsnotify.Watcher
	events        chan Event
	errors        chan error
	done          chan struct{}
	extensions    map[string]bool
	outputRoots   []string
	includeHidden bool

	mu            sync.Mutex
	debounceDelay time.Duration
	debounceMap   map[string]*time.Timer
	closed        bool
}

// New watches every source root of profiles recursively. Only files with a
// profile's source extension are reported, and nothing under an output
// root is, so a run never triggers itself.
func New(profiles []models.Profile, includeHidden bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:       fsw,
		events:        make(chan Event, 100),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		extensions:    make(map[string]bool),
		includeHidden: includeHidden,
		debounceDelay: DefaultDebounceDelay,
		debounceMap:   make(map[string]*time.Timer),
	}

	for _, p := range profiles {
		w.extensions[p.SourceFileExtension] = true
		w.outputRoots = append(w.outputRoots, filepath.Clean(p.OutputRoot))
	}
	for _, p := range profiles {
		if err := w.addRecursive(filepath.Clean(p.SourceRoot)); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go w.processEvents()

	return w, nil
}

// addRecursive adds dir and its subdirectories to the watcher. A symlinked
// dir is followed; watches are added under dir's own name so event paths
// match the configured root.
func (w *Watcher) addRecursive(dir string) error {
	walkRoot := dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		walkRoot = resolved
	}

	return filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A vanished or unreadable directory is simply not watched.
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, rel)
		if path != dir && (w.hidden(path) || w.underOutput(path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil && !errors.Is(err, fs.ErrPermission) {
			return err
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.hidden(path) || w.underOutput(path) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
			// Files created before the directory was added are not seen by
			// fsnotify, so report the directory itself.
			w.sendEvent(path, Created)
			return
		}
	}

	if !w.matches(path) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = Created
	case event.Has(fsnotify.Write):
		op = Written
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = Removed
	default:
		return
	}

	if op == Written {
		w.debounce(path, op)
	} else {
		w.sendEvent(path, op)
	}
}

// matches reports whether path is a file some profile would convert.
func (w *Watcher) matches(path string) bool {
	if w.hidden(path) || w.underOutput(path) {
		return false
	}
	ext := models.FileExtension(path)
	return ext != "" && w.extensions[ext]
}

func (w *Watcher) hidden(path string) bool {
	return !w.includeHidden && strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) underOutput(path string) bool {
	for _, root := range w.outputRoots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) debounce(path string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if timer, exists := w.debounceMap[path]; exists {
		timer.Stop()
	}

	w.debounceMap[path] = time.AfterFunc(w.debounceDelay, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()

		w.sendEvent(path, op)
	})
}

func (w *Watcher) sendEvent(path string, op Op) {
	event := Event{Path: path, Op: op, Timestamp: time.Now()}

	select {
	case w.events <- event:
	case <-w.done:
	default:
		// A full channel already holds a pending change.
	}
}

// Events returns the channel of observed changes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Next blocks until a change is observed, stop is closed or ctx is done.
// Events that arrive within settle of the first one are folded into it.
func (w *Watcher) Next(ctx context.Context, stop <-chan struct{}, settle time.Duration) (Event, bool) {
	var first Event
	select {
	case first = <-w.events:
	case <-stop:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	for {
		select {
		case <-w.events:
		case <-timer.C:
			return first, true
		case <-stop:
			return first, true
		case <-ctx.Done():
			return first, true
		}
	}
}

// SetDebounceDelay sets the delay used to coalesce writes to one file.
func (w *Watcher) SetDebounceDelay(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDelay = delay
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	for _, timer := range w.debounceMap {
		timer.Stop()
	}
	w.debounceMap = nil
	w.mu.Unlock()

	close(w.done)

	return w.watcher.Close()
}
