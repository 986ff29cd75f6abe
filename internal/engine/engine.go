// Package engine resolves conversion engines by name and invokes them on
// single files.
//
// An engine is anything that turns one source file into one output file and
// reports whether it did. Engines live in a directory: an executable named
// after the engine is run directly, and a "<name>.sh-template" file is
// expanded and handed to sh. A builtin Markdown engine is always available
// unless a file of the same name shadows it.
package engine

import (
	"context"
)

// Engine converts src into dst. The boolean is the engine's own verdict; an
// error means the engine could not run to completion.
type Engine interface {
	Convert(ctx context.Context, src, dst string, options []string) (bool, error)
}

// Loader resolves an engine by name.
type Loader interface {
	Load(name string) (Engine, error)
}

// Func adapts a plain function to Engine.
type Func func(ctx context.Context, src, dst string, options []string) (bool, error)

// Convert calls f.
func (f Func) Convert(ctx context.Context, src, dst string, options []string) (bool, error) {
	return f(ctx, src, dst, options)
}
