package archivekit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/juanre/mail-flow/internal/errs"
)

// Store performs crash-safe, content-addressed file writes.
type Store struct {
	logger hclog.Logger
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Logger hclog.Logger
}

// NewStore creates an AtomicStore.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Store{logger: cfg.Logger.Named("atomic-store")}
}

// WriteAtomic writes b to path via temp-file-in-same-dir + fsync + rename:
// create parent dirs, write a uniquely named temp file in the same
// directory, fsync the temp fd, rename temp -> final, and on any failure
// remove the temp file.
func (s *Store) WriteAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.New(errs.IOError, "mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return errs.New(errs.IOError, "create-temp", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(b); err != nil {
		cleanup()
		return errs.New(errs.IOError, "write-temp", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errs.New(errs.IOError, "fsync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errs.New(errs.IOError, "close-temp", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errs.New(errs.IOError, "rename", err)
	}

	s.logger.Debug("wrote file atomically", "path", path, "bytes", len(b))
	return nil
}

// Remove best-effort deletes a file, used to roll back earlier writes when
// a later step in a multi-step write sequence fails.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("cleanup remove failed", "path", path, "error", err)
	}
}

// AppendLine appends a single line to path, creating it if necessary. Used
// for the append-only manifest. Not atomic by itself — callers serialize
// per-directory via a FileLock.
func (s *Store) AppendLine(path string, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.New(errs.IOError, "mkdir", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New(errs.IOError, "open-manifest", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, line); err != nil {
		return errs.New(errs.IOError, "append-manifest", err)
	}
	return f.Sync()
}
