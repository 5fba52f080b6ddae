package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juanre/mail-flow/internal/sidecar"
)

func writeSidecar(t *testing.T, dir, name string, doc *sidecar.Document) {
	t.Helper()
	b, err := sidecar.MarshalCanonical(doc)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func baseDoc(id, entity, path string) *sidecar.Document {
	return &sidecar.Document{
		ID:        id,
		Entity:    entity,
		Source:    "gmail",
		Type:      "application/pdf",
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Content: sidecar.Content{
			Path:      path,
			Hash:      "sha256:" + sampleHash(),
			SizeBytes: 100,
			Mimetype:  "application/pdf",
		},
		Origin: map[string]any{},
		Ingest: sidecar.Ingest{Connector: "gmail", IngestedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func sampleHash() string {
	return strings.Repeat("1", 63) + "a"
}

func TestWalkExpensesSkipsMissingFields(t *testing.T) {
	dir := t.TempDir()

	complete := baseDoc("acme=invoices/2025-03-01T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/invoices/2025/invoice.pdf")
	complete.Accounting = &sidecar.Accounting{Expense: &sidecar.Expense{
		ExpenseDate: "2025-03-01", Vendor: "Acme Corp", TotalAmount: "42.00", Currency: "USD",
	}}
	writeSidecar(t, filepath.Join(dir, "acme", "invoices", "2025"), "invoice.json", complete)

	incomplete := baseDoc("acme=invoices/2025-03-02T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/invoices/2025/incomplete.pdf")
	incomplete.Accounting = &sidecar.Accounting{Expense: &sidecar.Expense{
		ExpenseDate: "2025-03-02", Vendor: "Missing Amount Co",
	}}
	writeSidecar(t, filepath.Join(dir, "acme", "invoices", "2025"), "incomplete.json", incomplete)

	noExpense := baseDoc("acme=notes/2025-03-03T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/notes/2025/note.pdf")
	writeSidecar(t, filepath.Join(dir, "acme", "notes", "2025"), "note.json", noExpense)

	rows, err := WalkExpenses(dir, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Acme Corp", rows[0].Vendor)
	require.Equal(t, "acme/invoices/2025/invoice.pdf", rows[0].ArchivePath)
}

func TestWalkExpensesPrefersExpenseSourcePathOverContentPath(t *testing.T) {
	dir := t.TempDir()

	doc := baseDoc("acme=invoices/2025-03-01T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/invoices/2025/rendered.pdf")
	doc.Accounting = &sidecar.Accounting{Expense: &sidecar.Expense{
		ExpenseDate: "2025-03-01", Vendor: "Acme Corp", TotalAmount: "42.00", Currency: "USD",
		SourcePath:       "acme/invoices/2025/original-invoice.pdf",
		SourceDocumentID: "acme=invoices/2025-03-01T00:00:00Z/sha256:original",
	}}
	writeSidecar(t, filepath.Join(dir, "acme", "invoices", "2025"), "invoice.json", doc)

	rows, err := WalkExpenses(dir, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "acme/invoices/2025/original-invoice.pdf", rows[0].ArchivePath)
	require.Equal(t, "acme=invoices/2025-03-01T00:00:00Z/sha256:original", rows[0].DocumentID)
}

func TestWalkExpensesSortsByDateThenID(t *testing.T) {
	dir := t.TempDir()

	later := baseDoc("acme=invoices/2025-03-05T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/invoices/2025/later.pdf")
	later.Accounting = &sidecar.Accounting{Expense: &sidecar.Expense{
		ExpenseDate: "2025-03-05", Vendor: "Later Co", TotalAmount: "10.00", Currency: "USD",
	}}
	writeSidecar(t, filepath.Join(dir, "acme", "invoices", "2025"), "later.json", later)

	earlier := baseDoc("acme=invoices/2025-03-01T00:00:00Z/sha256:"+sampleHash(), "acme", "acme/invoices/2025/earlier.pdf")
	earlier.Accounting = &sidecar.Accounting{Expense: &sidecar.Expense{
		ExpenseDate: "2025-03-01", Vendor: "Earlier Co", TotalAmount: "20.00", Currency: "USD",
	}}
	writeSidecar(t, filepath.Join(dir, "acme", "invoices", "2025"), "earlier.json", earlier)

	rows, err := WalkExpenses(dir, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Earlier Co", rows[0].Vendor)
	require.Equal(t, "Later Co", rows[1].Vendor)
}

func TestWriteExpensesCSVHeaderAndTraceability(t *testing.T) {
	rows := []ExpenseRow{
		{DocumentID: "acme=invoices/2025-03-01T00:00:00Z/sha256:" + sampleHash(), ArchivePath: "acme/invoices/2025/invoice.pdf",
			ExpenseDate: "2025-03-01", Vendor: "Acme Corp", TotalAmount: "42.00", Currency: "USD"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteExpensesCSV(&buf, rows))
	out := buf.String()
	require.Contains(t, out, "document_id,archive_path,expense_date,vendor,total_amount,currency,invoice_number")
	require.Contains(t, out, "acme/invoices/2025/invoice.pdf")
}

func TestWriteXeroCSVReferencesArchiveID(t *testing.T) {
	rows := []ExpenseRow{
		{DocumentID: "acme=invoices/2025-03-01T00:00:00Z/sha256:" + sampleHash(), ArchivePath: "acme/invoices/2025/invoice.pdf",
			ExpenseDate: "2025-03-01", Vendor: "Acme Corp", TotalAmount: "42.00", Currency: "USD"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXeroCSV(&buf, rows))
	out := buf.String()
	require.Contains(t, out, "archive:acme=invoices/2025-03-01T00:00:00Z/sha256:"+sampleHash())
	require.Contains(t, out, "acme/invoices/2025/invoice.pdf")
}
