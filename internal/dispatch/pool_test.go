package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harrison/tern/internal/engine"
	"github.com/harrison/tern/internal/interrupt"
	"github.com/harrison/tern/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []models.MetadataUpdate
	err     error
}

func (s *recordingSink) Upsert(u models.MetadataUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.updates = append(s.updates, u)
	return nil
}

func (s *recordingSink) sorted() []models.MetadataUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.updates)
	slices.SortFunc(out, func(a, b models.MetadataUpdate) int {
		if a.ProfileID != b.ProfileID {
			return int(a.ProfileID - b.ProfileID)
		}
		return strings.Compare(a.SourceFile, b.SourceFile)
	})
	return out
}

// apply folds updates into profile metadata the way the store would.
func (s *recordingSink) apply(profiles []models.Profile) {
	for _, u := range s.sorted() {
		for i := range profiles {
			if profiles[i].ID != u.ProfileID {
				continue
			}
			if profiles[i].Metadata == nil {
				profiles[i].Metadata = make(map[string]int64)
			}
			profiles[i].Metadata[u.SourceFile] = u.MTime
		}
	}
}

// copyConverter copies src to dst and reports the given verdict.
type copyConverter struct {
	calls  atomic.Int32
	result bool
	err    error
}

func (c *copyConverter) Convert(_ context.Context, _, src, dst string, _ []string) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	if !c.result {
		return false, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, err
	}
	return true, os.WriteFile(dst, data, 0644)
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("# "+f+"\n"), 0644))
	}
}

func mdProfile(id int64, in, out string) models.Profile {
	return models.Profile{
		ID:                  id,
		Engine:              engine.MarkdownEngineName,
		SourceRoot:          in,
		OutputRoot:          out,
		SourceFileExtension: "md",
		OutputFileExtension: "html",
	}
}

func TestPool_MarkdownToHTML(t *testing.T) {
	root := t.TempDir()
	in, out := filepath.Join(root, "in"), filepath.Join(root, "out")
	writeFiles(t, in, "a.md", "b.md", "x/c.md", "README.txt")

	profiles := []models.Profile{mdProfile(1, in, out)}
	sink := &recordingSink{}
	inv := engine.NewInvoker(engine.NewRegistry(engine.NewDirLoader("")))
	pool := NewPool(inv, sink, &interrupt.Flag{}, nil, Policy{ParallelProfiles: true, ParallelFiles: true})

	result := pool.Run(context.Background(), profiles)
	assert.Equal(t, 3, result.Converted)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Cancelled)

	for _, f := range []string{"a.html", "b.html", "x/c.html"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(f)))
	}
	assert.NoFileExists(t, filepath.Join(out, "README.html"))

	updates := sink.sorted()
	require.Len(t, updates, 3)
	for _, u := range updates {
		info, err := os.Stat(u.SourceFile)
		require.NoError(t, err)
		assert.Equal(t, info.ModTime().Unix(), u.MTime)
		assert.Equal(t, int64(1), u.ProfileID)
	}

	// Second run with the applied metadata converts nothing.
	sink.apply(profiles)
	second := NewPool(inv, &recordingSink{}, &interrupt.Flag{}, nil, Policy{ParallelFiles: true})
	result = second.Run(context.Background(), profiles)
	assert.Equal(t, 0, result.Converted)
	assert.Equal(t, 3, result.UpToDate)
}

func TestPool_EngineDeclines(t *testing.T) {
	root := t.TempDir()
	in, out := filepath.Join(root, "in"), filepath.Join(root, "out")
	writeFiles(t, in, "a.md")

	conv := &copyConverter{result: false}
	sink := &recordingSink{}
	result := NewPool(conv, sink, &interrupt.Flag{}, nil, Policy{}).
		Run(context.Background(), []models.Profile{mdProfile(1, in, out)})

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.FailedFiles, 1)
	assert.Equal(t, models.StatusFailed, result.FailedFiles[0].Status)
	assert.Empty(t, sink.sorted(), "a declined conversion leaves no metadata")
}

func TestPool_EngineFaultIsPerFile(t *testing.T) {
	root := t.TempDir()
	in, out := filepath.Join(root, "in"), filepath.Join(root, "out")
	writeFiles(t, in, "a.md", "b.md")

	conv := &copyConverter{err: models.NewFault(models.EngineFault, "run", "", errors.New("boom"))}
	result := NewPool(conv, &recordingSink{}, &interrupt.Flag{}, nil, Policy{ParallelFiles: true}).
		Run(context.Background(), []models.Profile{mdProfile(1, in, out)})

	assert.Equal(t, int32(2), conv.calls.Load(), "one fault does not stop the others")
	assert.Equal(t, 2, result.Failed)
	for _, fr := range result.FailedFiles {
		assert.Equal(t, models.StatusFaulted, fr.Status)
		assert.Equal(t, models.EngineFault, models.FaultKindOf(fr.Error))
	}
}

func TestPool_DryRun(t *testing.T) {
	root := t.TempDir()
	in, out := filepath.Join(root, "in"), filepath.Join(root, "out")
	writeFiles(t, in, "a.md", "b.md")

	conv := &copyConverter{result: true}
	sink := &recordingSink{}
	result := NewPool(conv, sink, &interrupt.Flag{}, nil, Policy{DryRun: true}).
		Run(context.Background(), []models.Profile{mdProfile(1, in, out)})

	assert.Equal(t, 2, result.Planned)
	assert.Zero(t, conv.calls.Load())
	assert.Empty(t, sink.sorted())
	assert.NoDirExists(t, out)
}

func TestPool_InvalidIgnorePatternSkipsProfile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "in1"), "a.md")
	writeFiles(t, filepath.Join(root, "in2"), "b.md")

	broken := mdProfile(1, filepath.Join(root, "in1"), filepath.Join(root, "out1"))
	broken.IgnorePatterns = []string{"[oops"}
	healthy := mdProfile(2, filepath.Join(root, "in2"), filepath.Join(root, "out2"))

	conv := &copyConverter{result: true}
	result := NewPool(conv, &recordingSink{}, &interrupt.Flag{}, nil, Policy{}).
		Run(context.Background(), []models.Profile{broken, healthy})

	require.Len(t, result.Profiles, 2)
	assert.Equal(t, models.WalkFault, models.FaultKindOf(result.Profiles[0].Error))
	assert.Equal(t, 1, result.Profiles[1].Converted)
}

// blockingConverter holds every conversion until release is closed.
type blockingConverter struct {
	started chan string
	release chan struct{}
	calls   atomic.Int32
}

func (c *blockingConverter) Convert(_ context.Context, _, src, _ string, _ []string) (bool, error) {
	c.calls.Add(1)
	c.started <- src
	<-c.release
	return true, nil
}

func TestPool_CancellationDrainsInFlight(t *testing.T) {
	root := t.TempDir()
	in, out := filepath.Join(root, "in"), filepath.Join(root, "out")
	writeFiles(t, in, "a.md", "b.md", "c.md", "d.md", "e.md")

	conv := &blockingConverter{started: make(chan string, 10), release: make(chan struct{})}
	sink := &recordingSink{}
	flag := &interrupt.Flag{}
	pool := NewPool(conv, sink, flag, nil, Policy{ParallelFiles: true, MaxWorkers: 1})

	done := make(chan models.RunResult, 1)
	go func() {
		done <- pool.Run(context.Background(), []models.Profile{mdProfile(1, in, out)})
	}()

	var first string
	select {
	case first = <-conv.started:
	case <-time.After(5 * time.Second):
		t.Fatal("no conversion started")
	}

	flag.Set()
	close(conv.release)

	var result models.RunResult
	select {
	case result = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}

	assert.True(t, result.Cancelled)
	assert.Equal(t, int32(1), conv.calls.Load(), "nothing starts after cancellation")
	assert.Equal(t, 1, result.Converted)
	updates := sink.sorted()
	require.Len(t, updates, 1, "the in-flight conversion still reports its metadata")
	assert.Equal(t, first, updates[0].SourceFile)
}

func TestPool_CancelledBeforeStart(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "in"), "a.md")

	flag := &interrupt.Flag{}
	flag.Set()
	conv := &copyConverter{result: true}
	result := NewPool(conv, &recordingSink{}, flag, nil, Policy{}).
		Run(context.Background(), []models.Profile{mdProfile(1, filepath.Join(root, "in"), filepath.Join(root, "out"))})

	assert.True(t, result.Cancelled)
	assert.Zero(t, conv.calls.Load())
	assert.Empty(t, result.Profiles)
}

func TestPool_ParallelMatchesSequential(t *testing.T) {
	policies := map[string]Policy{
		"sequential":        {},
		"parallel files":    {ParallelFiles: true},
		"parallel profiles": {ParallelProfiles: true},
		"fully parallel":    {ParallelProfiles: true, ParallelFiles: true, MaxWorkers: 3, MaxProfiles: 2},
	}

	results := make(map[string][]models.MetadataUpdate)
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			var profiles []models.Profile
			for i := 1; i <= 3; i++ {
				in := filepath.Join(root, "in", string(rune('a'+i)))
				writeFiles(t, in, "1.md", "2.md", "deep/3.md", "skip.txt")
				profiles = append(profiles, mdProfile(int64(i), in, filepath.Join(root, "out", string(rune('a'+i)))))
			}

			sink := &recordingSink{}
			result := NewPool(&copyConverter{result: true}, sink, &interrupt.Flag{}, nil, policy).
				Run(context.Background(), profiles)
			assert.Equal(t, 9, result.Converted)
			require.Len(t, result.Profiles, 3)
			for i, pr := range result.Profiles {
				assert.Equal(t, int64(i+1), pr.ProfileID)
				assert.Equal(t, 3, pr.Converted)
			}

			// Compare relative paths since each subtest has its own root.
			var normalized []models.MetadataUpdate
			for _, u := range sink.sorted() {
				rel, err := filepath.Rel(root, u.SourceFile)
				require.NoError(t, err)
				normalized = append(normalized, models.MetadataUpdate{ProfileID: u.ProfileID, SourceFile: rel})
			}
			results[name] = normalized
		})
	}

	for name, got := range results {
		assert.Equal(t, results["sequential"], got, name)
	}
}

// gaugeConverter records the highest number of concurrent conversions.
type gaugeConverter struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *gaugeConverter) Convert(context.Context, string, string, string, []string) (bool, error) {
	n := c.current.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	c.current.Add(-1)
	return true, nil
}

func TestPool_MaxWorkersBoundsAllProfiles(t *testing.T) {
	root := t.TempDir()
	var profiles []models.Profile
	for i := 1; i <= 4; i++ {
		in := filepath.Join(root, "in", string(rune('a'+i)))
		writeFiles(t, in, "1.md", "2.md", "3.md", "4.md")
		profiles = append(profiles, mdProfile(int64(i), in, filepath.Join(root, "out")))
	}

	conv := &gaugeConverter{}
	result := NewPool(conv, &recordingSink{}, &interrupt.Flag{}, nil,
		Policy{ParallelProfiles: true, ParallelFiles: true, MaxWorkers: 2}).
		Run(context.Background(), profiles)

	assert.Equal(t, 16, result.Converted)
	assert.LessOrEqual(t, conv.peak.Load(), int32(2))
}

func TestPool_SinkFailureIsCounted(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "in"), "a.md")

	sink := &recordingSink{err: errors.New("closed")}
	result := NewPool(&copyConverter{result: true}, sink, &interrupt.Flag{}, nil, Policy{}).
		Run(context.Background(), []models.Profile{mdProfile(1, filepath.Join(root, "in"), filepath.Join(root, "out"))})

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.PersistenceFaults)
}

func TestPool_Workers(t *testing.T) {
	assert.Equal(t, 4, NewPool(nil, nil, nil, nil, Policy{MaxWorkers: 4}).Workers())
	assert.Positive(t, NewPool(nil, nil, nil, nil, Policy{}).Workers())
}
