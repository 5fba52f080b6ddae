package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	ix, err := New(Config{
		DBPath:   filepath.Join(dir, "metadata.db"),
		BleveDir: filepath.Join(dir, "fulltext.bleve"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestUpsertDocumentInsertsAndUpdates(t *testing.T) {
	ix := newTestIndex(t)

	row := DocumentRow{
		DocumentID: "acme=invoices/2025-01-02T00:00:00Z/sha256:" + sampleHash(),
		Entity:     "acme",
		Date:       "2025-01-02",
		Filename:   "invoice-001.pdf",
		RelPath:    "acme/invoices/2025/invoice-001.pdf",
		Hash:       "sha256:" + sampleHash(),
		Size:       1024,
		Type:       "application/pdf",
		Source:     "gmail",
		Workflow:   "invoices",
		OriginJSON: "{}",
	}
	require.NoError(t, ix.UpsertDocument(row))

	var got DocumentRow
	require.NoError(t, ix.db.Where("entity = ? AND rel_path = ?", row.Entity, row.RelPath).First(&got).Error)
	require.Equal(t, int64(1024), got.Size)

	row.Size = 2048
	row.Category = "travel"
	require.NoError(t, ix.UpsertDocument(row))

	var updated DocumentRow
	require.NoError(t, ix.db.Where("entity = ? AND rel_path = ?", row.Entity, row.RelPath).First(&updated).Error)
	require.Equal(t, int64(2048), updated.Size)
	require.Equal(t, "travel", updated.Category)
	require.Equal(t, got.ID, updated.ID, "upsert must not create a second row")
}

func TestSearchFiltersByEntityWithoutQuery(t *testing.T) {
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertDocument(DocumentRow{
		DocumentID: "acme=invoices/2025-01-02T00:00:00Z/sha256:" + sampleHash(),
		Entity:     "acme",
		Date:       "2025-01-02",
		Filename:   "invoice-001.pdf",
		RelPath:    "acme/invoices/2025/invoice-001.pdf",
		Hash:       "sha256:" + sampleHash(),
		Size:       1024,
		Type:       "application/pdf",
		Source:     "gmail",
		OriginJSON: "{}",
	}))
	require.NoError(t, ix.UpsertDocument(DocumentRow{
		DocumentID: "personal=receipts/2025-01-03T00:00:00Z/sha256:" + sampleHash2(),
		Entity:     "personal",
		Date:       "2025-01-03",
		Filename:   "receipt-002.pdf",
		RelPath:    "personal/receipts/2025/receipt-002.pdf",
		Hash:       "sha256:" + sampleHash2(),
		Size:       512,
		Type:       "application/pdf",
		Source:     "gmail",
		OriginJSON: "{}",
	}))

	results, err := ix.Search(context.Background(), "", Filter{Entity: "acme"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "acme", results[0].Entity)
}

func TestSearchFullTextFindsByFilename(t *testing.T) {
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertDocument(DocumentRow{
		DocumentID: "acme=invoices/2025-01-02T00:00:00Z/sha256:" + sampleHash(),
		Entity:     "acme",
		Date:       "2025-01-02",
		Filename:   "quarterly-invoice-acme.pdf",
		RelPath:    "acme/invoices/2025/quarterly-invoice-acme.pdf",
		Hash:       "sha256:" + sampleHash(),
		Size:       1024,
		Type:       "application/pdf",
		Source:     "gmail",
		OriginJSON: "{}",
	}))

	results, err := ix.Search(context.Background(), "quarterly", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "acme/invoices/2025/quarterly-invoice-acme.pdf", results[0].RelPath)
}

func TestAddLinkIsIdempotent(t *testing.T) {
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertDocument(DocumentRow{
		DocumentID: "acme=invoices/2025-01-02T00:00:00Z/sha256:" + sampleHash(),
		Entity:     "acme",
		Date:       "2025-01-02",
		Filename:   "invoice-001.pdf",
		RelPath:    "acme/invoices/2025/invoice-001.pdf",
		Hash:       "sha256:" + sampleHash(),
		Size:       1024,
		Type:       "application/pdf",
		Source:     "gmail",
		OriginJSON: "{}",
	}))
	require.NoError(t, ix.UpsertStream(StreamRow{
		Entity:           "acme",
		Kind:             "chat",
		ChannelOrMailbox: "general",
		Date:             "2025-01-02",
		RelPath:          "acme/streams/chat/general/2025",
		OriginJSON:       "{}",
	}))

	var doc DocumentRow
	require.NoError(t, ix.db.First(&doc).Error)
	var stream StreamRow
	require.NoError(t, ix.db.First(&stream).Error)

	require.NoError(t, ix.AddLink(stream.ID, doc.ID))
	require.NoError(t, ix.AddLink(stream.ID, doc.ID))

	var count int64
	require.NoError(t, ix.db.Model(&LinkRow{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func sampleHash() string {
	return "1111111111111111111111111111111111111111111111111111111111111a"
}

func sampleHash2() string {
	return "2222222222222222222222222222222222222222222222222222222222222b"
}
