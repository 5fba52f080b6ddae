package localfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/pipeline"
)

func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func drain(t *testing.T, a *Adapter) []string {
	t.Helper()
	var ids []string
	for {
		item, ok, err := a.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, item.ID)
	}
	return ids
}

func TestNextYieldsFilesInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "b.txt", now)
	writeFile(t, dir, "a.txt", now)
	writeFile(t, dir, "c.txt", now)

	a := New(Config{Dir: dir})
	ids := drain(t, a)
	require.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "c.txt"),
	}, ids)
}

func TestNextSetsSourceAndOrigin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", time.Now())

	a := New(Config{Dir: dir})
	item, ok, err := a.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "localdocs", item.Raw.Source)
	require.Equal(t, "doc.txt", item.Raw.Origin["filename"])
	require.Equal(t, []byte("content of doc.txt"), item.Raw.RawBytes)
}

func TestAfterBeforeFiltersByModTime(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	mid := time.Now().Add(-24 * time.Hour)
	recent := time.Now()

	writeFile(t, dir, "old.txt", old)
	writeFile(t, dir, "mid.txt", mid)
	writeFile(t, dir, "recent.txt", recent)

	a := New(Config{
		Dir:    dir,
		After:  old.Add(time.Hour),
		Before: recent.Add(-time.Hour),
	})
	ids := drain(t, a)
	require.Equal(t, []string{filepath.Join(dir, "mid.txt")}, ids)
}

func TestMaxCapsResultCount(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, dir, name, now)
	}

	a := New(Config{Dir: dir, Max: 2})
	ids := drain(t, a)
	require.Len(t, ids, 2)
}

func TestNextOnEmptyDirReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	a := New(Config{Dir: dir})
	item, ok, err := a.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, item)
}

func TestAckIsNoOp(t *testing.T) {
	a := New(Config{Dir: t.TempDir()})
	require.NoError(t, a.Ack(context.Background(), "anything", pipeline.AckArchived))
}
