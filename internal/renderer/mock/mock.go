// Package mock provides a deterministic PDFRenderer used by tests and by
// any run with no rendering engine configured.
package mock

import (
	"bytes"
	"context"
	"fmt"

	"github.com/juanre/mail-flow/internal/renderer"
)

// Renderer emits a minimal, syntactically-recognizable "%PDF-1.4" payload
// rather than a real PDF, so callers can assert on the extension/magic
// bytes without a rendering engine.
type Renderer struct{}

// New creates a mock Renderer.
func New() *Renderer { return &Renderer{} }

// RenderHTML implements renderer.PDFRenderer.
func (r *Renderer) RenderHTML(ctx context.Context, html string, opts renderer.Options) ([]byte, error) {
	if len(html) > renderer.MaxHTMLBytes {
		return nil, fmt.Errorf("renderer: html input exceeds %d bytes", renderer.MaxHTMLBytes)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-1.4\n%% mock render of %q (%d bytes html)\n", opts.Title, len(html))
	return buf.Bytes(), nil
}

// RenderText implements renderer.PDFRenderer.
func (r *Renderer) RenderText(ctx context.Context, text string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-1.4\n%% mock render of plain text (%d bytes)\n", len(text))
	buf.WriteString(text)
	return buf.Bytes(), nil
}
