// Package mcpsurface exposes a small, read-only query surface over the
// workflow registry and global index, meant to be wrapped by an in-process
// MCP server: list workflows, search, and fetch one sidecar by path. It
// never writes to the archive.
package mcpsurface

import (
	"context"
	"os"

	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/index"
	"github.com/juanre/mail-flow/internal/sidecar"
	"github.com/juanre/mail-flow/internal/workflow"
)

// Surface wraps the workflow registry and index for read-only queries.
type Surface struct {
	index     *index.Index
	workflows *workflow.Registry
}

// New creates a Surface.
func New(ix *index.Index, wf *workflow.Registry) *Surface {
	return &Surface{index: ix, workflows: wf}
}

// ListWorkflows returns every registered workflow, sorted by name.
func (s *Surface) ListWorkflows() []*workflow.Workflow {
	return s.workflows.List()
}

// Search runs a full-text-or-filter query against the index.
func (s *Surface) Search(ctx context.Context, query string, filter index.Filter, limit int) ([]index.Result, error) {
	return s.index.Search(ctx, query, filter, limit)
}

// FetchSidecar reads and validates the sidecar JSON file at path (as
// returned by Search's RelPath field with ".json" substituted for the
// content extension by the caller).
func (s *Surface) FetchSidecar(path string) (*sidecar.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.IOError, "fetch-sidecar", err)
	}
	return sidecar.Unmarshal(b)
}
