package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/harrison/tern/internal/filelock"
	"github.com/harrison/tern/internal/models"
)

// MarkdownEngineName is the name of the builtin Markdown to HTML engine.
const MarkdownEngineName = "markdown"

// Markdown engine options.
const (
	OptionGFM       = "gfm"
	OptionUnsafe    = "unsafe"
	OptionHardWraps = "hard-wraps"
	OptionXHTML     = "xhtml"
)

// MarkdownEngine renders Markdown to HTML with goldmark.
type MarkdownEngine struct{}

// Convert renders src and atomically replaces dst. Empty options are
// ignored; an unknown option is an EngineFault.
func (MarkdownEngine) Convert(_ context.Context, src, dst string, options []string) (bool, error) {
	md, err := newMarkdown(options)
	if err != nil {
		return false, models.NewFault(models.EngineFault, "configure markdown", src, err)
	}

	source, err := os.ReadFile(src)
	if err != nil {
		return false, models.NewFault(models.IOFault, "read source", src, err)
	}

	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return false, models.NewFault(models.EngineFault, "render markdown", src, err)
	}

	if err := filelock.AtomicWrite(dst, buf.Bytes()); err != nil {
		return false, models.NewFault(models.IOFault, "write output", dst, err)
	}

	return true, nil
}

func newMarkdown(options []string) (goldmark.Markdown, error) {
	var exts []goldmark.Extender
	var renderOpts []renderer.Option

	for _, opt := range options {
		switch opt {
		case "":
		case OptionGFM:
			exts = append(exts, extension.GFM)
		case OptionUnsafe:
			renderOpts = append(renderOpts, html.WithUnsafe())
		case OptionHardWraps:
			renderOpts = append(renderOpts, html.WithHardWraps())
		case OptionXHTML:
			renderOpts = append(renderOpts, html.WithXHTML())
		default:
			return nil, fmt.Errorf("unknown option %q", opt)
		}
	}

	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithRendererOptions(renderOpts...),
	), nil
}
