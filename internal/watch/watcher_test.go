package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tern/internal/models"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{Created, "created"},
		{Written, "written"},
		{Removed, "removed"},
		{Op(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func newProfileTree(t *testing.T) (models.Profile, string) {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(in, ".git"), 0755))

	return models.Profile{
		ID:                  1,
		Engine:              "markdown",
		SourceRoot:          in,
		OutputRoot:          filepath.Join(in, "site"),
		SourceFileExtension: "md",
		OutputFileExtension: "html",
	}, in
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %s %s", ev.Op, ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ReportsMatchingFiles(t *testing.T) {
	profile, in := newProfileTree(t)

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	path := filepath.Join(in, "sub", "a.md")
	require.NoError(t, os.WriteFile(path, []byte("# a"), 0644))

	ev := waitEvent(t, w)
	assert.Equal(t, path, ev.Path)
	assert.Contains(t, []Op{Created, Written}, ev.Op)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	profile, in := newProfileTree(t)
	require.NoError(t, os.MkdirAll(profile.OutputRoot, 0755))

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, ".draft.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, ".git", "HEAD.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(profile.OutputRoot, "a.md"), []byte("x"), 0644))

	assertNoEvent(t, w)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	profile, in := newProfileTree(t)

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	dir := filepath.Join(in, "new")
	require.NoError(t, os.Mkdir(dir, 0755))
	ev := waitEvent(t, w)
	assert.Equal(t, dir, ev.Path)

	path := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(path, []byte("# b"), 0644))
	ev = waitEvent(t, w)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_SymlinkedSourceRoot(t *testing.T) {
	profile, in := newProfileTree(t)
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(in, link))
	profile.SourceRoot = link

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(in, "sub", "a.md"), []byte("# a"), 0644))

	ev := waitEvent(t, w)
	assert.Equal(t, filepath.Join(link, "sub", "a.md"), ev.Path)
}

func TestWatcher_MissingSourceRoot(t *testing.T) {
	profile := models.Profile{
		SourceRoot:          filepath.Join(t.TempDir(), "missing"),
		OutputRoot:          t.TempDir(),
		SourceFileExtension: "md",
	}

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
}

func TestWatcher_Next(t *testing.T) {
	profile, in := newProfileTree(t)

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	go func() {
		for _, name := range []string{"a.md", "b.md", "c.md"} {
			os.WriteFile(filepath.Join(in, name), []byte("#"), 0644)
		}
	}()

	ev, ok := w.Next(context.Background(), nil, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "md", models.FileExtension(ev.Path))

	assertNoEvent(t, w)
}

func TestWatcher_NextStops(t *testing.T) {
	profile, _ := newProfileTree(t)

	w, err := New([]models.Profile{profile}, false)
	require.NoError(t, err)
	defer w.Close()

	stop := make(chan struct{})
	close(stop)
	_, ok := w.Next(context.Background(), stop, time.Millisecond)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = w.Next(ctx, nil, time.Millisecond)
	assert.False(t, ok)
}
