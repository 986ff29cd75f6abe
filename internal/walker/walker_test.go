package walker

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/harrison/tern/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates:
//
//	a.md
//	b.txt
//	c.MD
//	README
//	notes.v2.md
//	.secret.md
//	.hidden/inside.md
//	sub/d.md
//	sub/drafts/e.md
//	drafts/f.md
//	build/g.md
func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"a.md",
		"b.txt",
		"c.MD",
		"README",
		"notes.v2.md",
		".secret.md",
		".hidden/inside.md",
		"sub/d.md",
		"sub/drafts/e.md",
		"drafts/f.md",
		"build/g.md",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
	return root
}

func collect(t *testing.T, root string, profile *models.Profile, includeHidden bool) []string {
	t.Helper()
	seq, err := Walk(profile, includeHidden)
	require.NoError(t, err)

	var got []string
	for path := range seq {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
	}
	slices.Sort(got)
	return got
}

func TestWalk(t *testing.T) {
	tests := []struct {
		name          string
		extension     string
		ignore        []string
		includeHidden bool
		want          []string
	}{
		{
			name:      "extension match is exact and case-sensitive",
			extension: "md",
			want:      []string{"a.md", "build/g.md", "drafts/f.md", "notes.v2.md", "sub/d.md", "sub/drafts/e.md"},
		},
		{
			name:          "hidden entries included on request",
			extension:     "md",
			includeHidden: true,
			want: []string{".hidden/inside.md", ".secret.md", "a.md", "build/g.md", "drafts/f.md",
				"notes.v2.md", "sub/d.md", "sub/drafts/e.md"},
		},
		{
			name:      "bare name pattern prunes directories at any depth",
			extension: "md",
			ignore:    []string{"drafts"},
			want:      []string{"a.md", "build/g.md", "notes.v2.md", "sub/d.md"},
		},
		{
			name:      "rooted pattern only prunes at that path",
			extension: "md",
			ignore:    []string{"sub/drafts/**"},
			want:      []string{"a.md", "build/g.md", "drafts/f.md", "notes.v2.md", "sub/d.md"},
		},
		{
			name:      "file glob",
			extension: "md",
			ignore:    []string{"*.v2.md", "build/"},
			want:      []string{"a.md", "drafts/f.md", "sub/d.md", "sub/drafts/e.md"},
		},
		{
			name:      "other extension",
			extension: "txt",
			want:      []string{"b.txt"},
		},
		{
			name:      "uppercase extension",
			extension: "MD",
			want:      []string{"c.MD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeTree(t)
			profile := &models.Profile{
				SourceRoot:          root,
				SourceFileExtension: tt.extension,
				IgnorePatterns:      tt.ignore,
			}
			assert.Equal(t, tt.want, collect(t, root, profile, tt.includeHidden))
		})
	}
}

func TestWalk_SymlinkedRoot(t *testing.T) {
	target := makeTree(t)
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(target, link))

	profile := &models.Profile{
		SourceRoot:          link,
		SourceFileExtension: "md",
		IgnorePatterns:      []string{"drafts"},
	}
	assert.Equal(t, []string{"a.md", "build/g.md", "notes.v2.md", "sub/d.md"}, collect(t, link, profile, false))

	seq, err := Walk(profile, false)
	require.NoError(t, err)
	for path := range seq {
		assert.True(t, strings.HasPrefix(path, link+string(filepath.Separator)), "path %s should stay under the configured root", path)
	}
}

func TestWalk_IsRestartable(t *testing.T) {
	root := makeTree(t)
	profile := &models.Profile{SourceRoot: root, SourceFileExtension: "md"}

	first := collect(t, root, profile, false)
	second := collect(t, root, profile, false)
	assert.Equal(t, first, second)
}

func TestWalk_EarlyStop(t *testing.T) {
	root := makeTree(t)
	seq, err := Walk(&models.Profile{SourceRoot: root, SourceFileExtension: "md"}, false)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestNew_InvalidPatternIsWalkFault(t *testing.T) {
	_, err := New(&models.Profile{SourceRoot: t.TempDir(), IgnorePatterns: []string{"[unclosed"}}, false)
	require.Error(t, err)
	assert.Equal(t, models.WalkFault, models.FaultKindOf(err))
}

func TestWalk_MissingRootReportsWalkFault(t *testing.T) {
	w, err := New(&models.Profile{
		SourceRoot:          filepath.Join(t.TempDir(), "missing"),
		SourceFileExtension: "md",
	}, false)
	require.NoError(t, err)

	var faults []error
	w.OnError = func(err error) { faults = append(faults, err) }

	for range w.Files() {
		t.Fatal("nothing should be yielded")
	}
	require.Len(t, faults, 1)
	assert.Equal(t, models.WalkFault, models.FaultKindOf(faults[0]))
}

func TestWalk_UnreadableDirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := makeTree(t)
	locked := filepath.Join(root, "sub")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	w, err := New(&models.Profile{SourceRoot: root, SourceFileExtension: "md"}, false)
	require.NoError(t, err)
	var faults int
	w.OnError = func(error) { faults++ }

	var got []string
	for path := range w.Files() {
		got = append(got, filepath.Base(path))
	}
	slices.Sort(got)

	assert.Equal(t, []string{"a.md", "f.md", "g.md", "notes.v2.md"}, got)
	assert.Equal(t, 1, faults)
}

func TestMatch(t *testing.T) {
	w, err := New(&models.Profile{IgnorePatterns: []string{"*.tmp", "vendor/**", "./docs/"}}, false)
	require.NoError(t, err)

	assert.True(t, w.Match("x.tmp"))
	assert.True(t, w.Match("deep/er/x.tmp"))
	assert.True(t, w.Match("vendor/lib/a.md"))
	assert.True(t, w.Match("docs"))
	assert.True(t, w.Match("src/docs"), "bare names match at any depth")
	assert.False(t, w.Match("vendored/a.md"))
	assert.False(t, w.Match("a.md"))
}
