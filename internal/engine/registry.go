package engine

import (
	"sync"

	"github.com/harrison/tern/internal/models"
)

type registryEntry struct {
	once   sync.Once
	engine Engine
	err    error
}

// Registry caches loaded engines. Each name is loaded at most once per
// registry; concurrent first lookups share that load, and a failed load is
// remembered as well.
type Registry struct {
	loader  Loader
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry creates a Registry backed by loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the engine registered under name, loading it on first use.
// Load failures are returned as EngineFault.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		entry = &registryEntry{}
		r.entries[name] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.engine, entry.err = r.loader.Load(name)
		if entry.err != nil && models.FaultKindOf(entry.err) != models.EngineFault {
			entry.err = models.NewFault(models.EngineFault, "load engine "+name, "", entry.err)
		}
	})

	return entry.engine, entry.err
}
