package archive

import (
	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archivekit"
)

// cleanupSet tracks files written during one Write call so they can be
// unlinked (best effort) if a later step fails.
type cleanupSet struct {
	store  *archivekit.Store
	logger hclog.Logger
	paths  []string
}

func newCleanupSet(store *archivekit.Store, logger hclog.Logger) *cleanupSet {
	return &cleanupSet{store: store, logger: logger}
}

func (c *cleanupSet) add(path string) {
	c.paths = append(c.paths, path)
}

func (c *cleanupSet) rollback() {
	for i := len(c.paths) - 1; i >= 0; i-- {
		c.store.Remove(c.paths[i])
	}
	c.logger.Debug("rolled back partial write", "files", len(c.paths))
}
