// Package renderer defines the PDF rendering contract used when an archived
// item has no native document bytes (e.g. a plain-text email body) and must
// be turned into a durable PDF.
package renderer

import "context"

// Options configures one render call.
type Options struct {
	Title string
}

// PDFRenderer turns HTML or plain text into PDF bytes. The concrete engine
// (wkhtmltopdf, chromium headless, a hosted rendering API) is external to
// this module; implementations must enforce their own timeout and surface
// structured errors for a missing engine or oversized input.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string, opts Options) ([]byte, error)
	RenderText(ctx context.Context, text string) ([]byte, error)
}

// MaxHTMLBytes is the input size above which a renderer should refuse html
// rather than attempt conversion.
const MaxHTMLBytes = 10 * 1024 * 1024
