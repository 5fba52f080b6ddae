// Package localfiles implements a SourceAdapter over a directory of
// standalone files (PDFs, images, plain text): each file becomes one item,
// its raw bytes the payload and its path the origin.
package localfiles

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// Config configures an Adapter.
type Config struct {
	Dir    string
	After  time.Time // zero means no lower bound
	Before time.Time // zero means no upper bound
	Max    int       // 0 means unlimited
}

// Adapter walks cfg.Dir once on first Next call, collecting matching file
// paths in sorted order, then yields each file's bytes in turn.
type Adapter struct {
	cfg   Config
	paths []string
	pos   int
}

var _ pipeline.SourceAdapter = (*Adapter)(nil)

// New creates a local-files Adapter.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ensureListed() error {
	if a.paths != nil {
		return nil
	}
	var matched []string
	err := filepath.WalkDir(a.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == a.cfg.Dir {
				return errs.New(errs.IOError, "localfiles-walk", err)
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !a.cfg.After.IsZero() && info.ModTime().Before(a.cfg.After) {
			return nil
		}
		if !a.cfg.Before.IsZero() && info.ModTime().After(a.cfg.Before) {
			return nil
		}
		matched = append(matched, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(matched)
	if a.cfg.Max > 0 && len(matched) > a.cfg.Max {
		matched = matched[:a.cfg.Max]
	}
	a.paths = matched
	return nil
}

// Next reads the next matching file's bytes.
func (a *Adapter) Next(ctx context.Context) (*pipeline.SourceItem, bool, error) {
	if err := a.ensureListed(); err != nil {
		return nil, false, err
	}
	if a.pos >= len(a.paths) {
		return nil, false, nil
	}
	path := a.paths[a.pos]
	a.pos++

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errs.New(errs.IOError, "localfiles-read", err)
	}

	return &pipeline.SourceItem{
		ID: path,
		Raw: feature.RawItem{
			Source:   "localdocs",
			RawBytes: raw,
			Origin:   map[string]any{"path": path, "filename": filepath.Base(path)},
		},
	}, true, nil
}

// Ack is a no-op: local files have no upstream state to relabel.
func (a *Adapter) Ack(ctx context.Context, id string, result pipeline.AckResult) error {
	return nil
}
