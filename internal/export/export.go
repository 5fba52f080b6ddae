// Package export derives deterministic CSV reports from the sidecar tree.
// It never touches the archive; it only reads side-cars already written by
// the archive writer.
package export

import (
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/sidecar"
)

// ExpenseRow is one traceable accounting line pulled from a sidecar.
type ExpenseRow struct {
	DocumentID    string
	ArchivePath   string
	ExpenseDate   string
	Vendor        string
	TotalAmount   string
	Currency      string
	InvoiceNumber string
}

// WalkExpenses walks basePath (or basePath/entity when entity is non-empty)
// for sidecar JSON files carrying an accounting.expense block with all of
// vendor, total_amount, currency, and expense_date present, and returns the
// resulting rows sorted by (expense_date, document_id). Sidecars missing a
// required field, or that fail to parse, are skipped with a warning.
func WalkExpenses(basePath, entity string, logger hclog.Logger) ([]ExpenseRow, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	root := basePath
	if entity != "" {
		root = filepath.Join(basePath, entity)
	}

	var rows []ExpenseRow
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				// root itself missing: nothing to export, not an error.
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		b, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Warn("export: failed to read sidecar", "path", path, "error", readErr)
			return nil
		}

		doc, parseErr := sidecar.Unmarshal(b)
		if parseErr != nil {
			logger.Warn("export: skipping unparseable sidecar", "path", path, "error", parseErr)
			return nil
		}

		if doc.Accounting == nil || doc.Accounting.Expense == nil {
			return nil
		}
		exp := doc.Accounting.Expense
		if exp.Vendor == "" || exp.TotalAmount == "" || exp.Currency == "" || exp.ExpenseDate == "" {
			logger.Warn("export: skipping expense with missing required field", "path", path, "document_id", doc.ID)
			return nil
		}

		documentID := doc.ID
		if exp.SourceDocumentID != "" {
			documentID = exp.SourceDocumentID
		}
		archivePath := doc.Content.Path
		if exp.SourcePath != "" {
			archivePath = exp.SourcePath
		}

		rows = append(rows, ExpenseRow{
			DocumentID:    documentID,
			ArchivePath:   archivePath,
			ExpenseDate:   exp.ExpenseDate,
			Vendor:        exp.Vendor,
			TotalAmount:   exp.TotalAmount,
			Currency:      exp.Currency,
			InvoiceNumber: exp.InvoiceNumber,
		})
		return nil
	})
	if walkErr != nil {
		return nil, errs.New(errs.IOError, "walk-expenses", walkErr)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ExpenseDate != rows[j].ExpenseDate {
			return rows[i].ExpenseDate < rows[j].ExpenseDate
		}
		return rows[i].DocumentID < rows[j].DocumentID
	})
	return rows, nil
}

var expenseHeader = []string{
	"document_id", "archive_path", "expense_date", "vendor", "total_amount", "currency", "invoice_number",
}

// WriteExpensesCSV writes rows as the plain expense report: header fixed,
// every row traceable back to its document_id and archive_path.
func WriteExpensesCSV(w io.Writer, rows []ExpenseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(expenseHeader); err != nil {
		return errs.New(errs.IOError, "write-expenses-csv", err)
	}
	for _, r := range rows {
		record := []string{r.DocumentID, r.ArchivePath, r.ExpenseDate, r.Vendor, r.TotalAmount, r.Currency, r.InvoiceNumber}
		if err := cw.Write(record); err != nil {
			return errs.New(errs.IOError, "write-expenses-csv", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.New(errs.IOError, "write-expenses-csv", err)
	}
	return nil
}

var xeroHeader = []string{
	"Date", "Description", "Reference", "Amount", "Currency",
}

// WriteXeroCSV writes rows in the Xero-import variant: Reference is
// "archive:{document_id}" and Description embeds the archive path so the
// import is traceable back to the source document without extra columns.
func WriteXeroCSV(w io.Writer, rows []ExpenseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(xeroHeader); err != nil {
		return errs.New(errs.IOError, "write-xero-csv", err)
	}
	for _, r := range rows {
		desc := r.Vendor + " (" + r.ArchivePath + ")"
		record := []string{r.ExpenseDate, desc, "archive:" + r.DocumentID, r.TotalAmount, r.Currency}
		if err := cw.Write(record); err != nil {
			return errs.New(errs.IOError, "write-xero-csv", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.New(errs.IOError, "write-xero-csv", err)
	}
	return nil
}
