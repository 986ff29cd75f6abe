package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/harrison/tern/internal/models"
)

// Invoker runs one conversion through a Registry.
type Invoker struct {
	registry *Registry
}

// NewInvoker creates an Invoker resolving engines through registry.
func NewInvoker(registry *Registry) *Invoker {
	return &Invoker{registry: registry}
}

// Convert makes sure dst's directory exists, resolves engineName and hands
// it src, dst and options. With no options the engine receives a single
// empty option. The engine's boolean is returned unchanged; a directory that
// cannot be created is an IOFault and anything the engine raises is an
// EngineFault. Nothing is retried.
func (inv *Invoker) Convert(ctx context.Context, engineName, src, dst string, options []string) (bool, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, models.NewFault(models.IOFault, "create output directory", dir, err)
	}

	eng, err := inv.registry.Get(engineName)
	if err != nil {
		return false, err
	}

	if len(options) == 0 {
		options = []string{""}
	}

	ok, err := eng.Convert(ctx, src, dst, options)
	if err != nil {
		if models.FaultKindOf(err) == models.FaultUnknown {
			err = models.NewFault(models.EngineFault, "run engine "+engineName, src, err)
		}
		return false, err
	}

	return ok, nil
}
