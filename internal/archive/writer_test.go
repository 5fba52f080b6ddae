package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/renderer/mock"
	"github.com/juanre/mail-flow/internal/sidecar"
	"github.com/juanre/mail-flow/internal/workflow"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	base := t.TempDir()
	w := New(Config{BasePath: base, SaveOriginals: true, ConvertAttachments: true, ManifestEnabled: true}, mock.New())
	return w, base
}

func testItem(source string, createdAt time.Time) *feature.Item {
	return &feature.Item{
		Source: source,
		Origin: map[string]any{"date": createdAt},
		Body:   "hello world",
	}
}

func TestWriteDocumentWithPayload(t *testing.T) {
	w, base := newTestWriter(t)
	created := time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC)
	item := testItem("mail", created)

	wf := &workflow.Workflow{Name: "acme-invoice", Entity: "acme", Doctype: "invoice"}
	res, err := w.Write(context.Background(), Request{
		Item:             item,
		Workflow:         wf,
		Payload:          []byte("%PDF-1.4..."),
		Mimetype:         "application/pdf",
		OriginalFilename: "invoice_abc.pdf",
	})
	require.NoError(t, err)
	require.Contains(t, res.ContentPath, filepath.Join(base, "acme", "docs", "2025"))
	require.FileExists(t, res.ContentPath)
	require.FileExists(t, res.MetadataPath)

	raw, err := os.ReadFile(res.MetadataPath)
	require.NoError(t, err)
	doc, err := sidecar.Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, "acme", doc.Entity)
	require.Equal(t, "acme-invoice", doc.Workflow)
	require.Equal(t, int64(len("%PDF-1.4...")), doc.Content.SizeBytes)
	require.Len(t, res.OriginalPaths, 1)

	manifestPath := filepath.Join(filepath.Dir(res.ContentPath), "manifest.jsonl")
	require.FileExists(t, manifestPath)
}

func TestWriteDocumentRendersBodyWhenNoPayload(t *testing.T) {
	w, _ := newTestWriter(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item := testItem("mail", created)
	wf := &workflow.Workflow{Name: "generic-receipt", Entity: "personal", Doctype: "receipt"}

	res, err := w.Write(context.Background(), Request{Item: item, Workflow: wf})
	require.NoError(t, err)
	raw, err := os.ReadFile(res.ContentPath)
	require.NoError(t, err)
	require.Contains(t, string(raw), "%PDF")
}

func TestWriteAttachmentTranscodesTSVToCSV(t *testing.T) {
	w, _ := newTestWriter(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item := testItem("mail", created)
	item.Attachments = []feature.Attachment{
		{Filename: "data.tsv", Mime: "text/tab-separated-values", PayloadRef: []byte("col1\tcol2\n1\t2\n")},
	}
	wf := &workflow.Workflow{Name: "generic-statement", Entity: "personal", Doctype: "statement"}

	res, err := w.Write(context.Background(), Request{
		Item: item, Workflow: wf, Payload: []byte("body"), Mimetype: "text/plain",
	})
	require.NoError(t, err)
	require.Len(t, res.AttachmentPaths, 1)
	require.True(t, filepath.Ext(res.AttachmentPaths[0]) == ".csv")
	raw, err := os.ReadFile(res.AttachmentPaths[0])
	require.NoError(t, err)
	require.Equal(t, "col1,col2\n1,2\n", string(raw))
}

func TestWriteStreamHasNoWorkflow(t *testing.T) {
	w, base := newTestWriter(t)
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	item := testItem("slack", created)

	res, err := w.Write(context.Background(), Request{
		Item:                   item,
		Payload:                []byte("transcript bytes"),
		Mimetype:               "text/plain",
		StreamEntity:           "personal",
		StreamKind:             "chat",
		StreamChannelOrMailbox: "general",
	})
	require.NoError(t, err)
	require.Contains(t, res.ContentPath, filepath.Join(base, "personal", "streams", "chat", "general", "2025"))

	raw, err := os.ReadFile(res.MetadataPath)
	require.NoError(t, err)
	doc, err := sidecar.Unmarshal(raw)
	require.NoError(t, err)
	require.Empty(t, doc.Workflow)
}

func TestWriteCollisionResolvesSuffix(t *testing.T) {
	w, _ := newTestWriter(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item1 := testItem("mail", created)
	item2 := testItem("mail", created)
	wf := &workflow.Workflow{Name: "generic-receipt", Entity: "personal", Doctype: "receipt"}

	res1, err := w.Write(context.Background(), Request{Item: item1, Workflow: wf, Payload: []byte("a"), Mimetype: "application/pdf"})
	require.NoError(t, err)
	res2, err := w.Write(context.Background(), Request{Item: item2, Workflow: wf, Payload: []byte("b"), Mimetype: "application/pdf"})
	require.NoError(t, err)
	require.NotEqual(t, res1.ContentPath, res2.ContentPath)
}
