package archivekit

import (
	"os"
	"syscall"
	"time"

	"github.com/juanre/mail-flow/internal/errs"
)

// FileLock is an advisory, per-path exclusive lock used to serialize
// manifest appends within one directory and workflow-registry read-modify-
// write cycles. Wraps syscall.Flock directly (see DESIGN.md).
type FileLock struct {
	path string
	f    *os.File
}

// NewFileLock returns a lock bound to a ".lock" file next to path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Acquire blocks (polling) until the lock is held or timeout elapses.
func (l *FileLock) Acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errs.New(errs.IOError, "open-lock", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.f = f
			return nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return errs.New(errs.LockTimeout, "acquire", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Release unlocks and closes the lock file.
func (l *FileLock) Release() error {
	if l.f == nil {
		return nil
	}
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return errs.New(errs.IOError, "unlock", err)
	}
	return closeErr
}
