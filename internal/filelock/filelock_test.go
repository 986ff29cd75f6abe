package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestTryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "store.db.lock")

	first := NewFileLock(lockPath)
	second := NewFileLock(lockPath)

	acquired, err := first.TryLock()
	if err != nil || !acquired {
		t.Fatalf("first TryLock: acquired=%v err=%v", acquired, err)
	}

	acquired, err = second.TryLock()
	if err != nil {
		t.Fatalf("second TryLock failed: %v", err)
	}
	if acquired {
		t.Error("second TryLock should fail while the lock is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = second.TryLock()
	if err != nil || !acquired {
		t.Errorf("TryLock after unlock: acquired=%v err=%v", acquired, err)
	}
	second.Unlock()
}

func TestAcquireRunLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "nested", "tern.db")

	lock, err := AcquireRunLock(storePath)
	if err != nil {
		t.Fatalf("AcquireRunLock failed: %v", err)
	}
	if lock.Path() != storePath+LockSuffix {
		t.Errorf("lock path = %s, want %s", lock.Path(), storePath+LockSuffix)
	}

	_, err = AcquireRunLock(storePath)
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("second AcquireRunLock error = %v, want ErrHeld", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	again, err := AcquireRunLock(storePath)
	if err != nil {
		t.Fatalf("AcquireRunLock after release failed: %v", err)
	}
	again.Unlock()
}

func TestAtomicWrite(t *testing.T) {
	tests := []struct {
		name     string
		existing []byte
		content  []byte
	}{
		{name: "new file", content: []byte("<h1>a</h1>")},
		{name: "overwrite", existing: []byte("old"), content: []byte("new")},
		{name: "empty content", existing: []byte("old"), content: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			target := filepath.Join(dir, "a.html")
			if tt.existing != nil {
				if err := os.WriteFile(target, tt.existing, 0600); err != nil {
					t.Fatal(err)
				}
			}

			if err := AtomicWrite(target, tt.content); err != nil {
				t.Fatalf("AtomicWrite failed: %v", err)
			}

			got, err := os.ReadFile(target)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(tt.content) {
				t.Errorf("content = %q, want %q", got, tt.content)
			}

			info, err := os.Stat(target)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0644 {
				t.Errorf("permissions = %v, want 0644", info.Mode().Perm())
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Errorf("expected only the target file, found %d entries", len(entries))
			}
		})
	}
}

func TestAtomicWriteCreatesDirectories(t *testing.T) {
	target := filepath.Join(t.TempDir(), "x", "y", "a.html")

	if err := AtomicWrite(target, []byte("ok")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("target not written: %v", err)
	}
}

func TestAtomicWriteFailsOnDirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	if err := os.MkdirAll(filepath.Join(target, "child"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := AtomicWrite(target, []byte("x")); err == nil {
		t.Fatal("expected error when target is a non-empty directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestConcurrentAtomicWrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a.html")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := AtomicWrite(target, []byte(fmt.Sprintf("writer-%d", i))); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if _, err := fmt.Sscanf(string(got), "writer-%d", &n); err != nil {
		t.Errorf("content %q is not one complete write", got)
	}
}
