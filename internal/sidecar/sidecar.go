// Package sidecar defines the canonical side-car document schema and its
// validation/normalization rules: a typed core plus a free-form origin
// sub-tree, where origin is `map[string]any` and everything with an
// invariant gets its own field.
package sidecar

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/juanre/mail-flow/internal/docid"
	"github.com/juanre/mail-flow/internal/errs"
)

var (
	lowerAlnumDashUnderscore = regexp.MustCompile(`^[a-z0-9_-]+$`)
	lowerSource              = regexp.MustCompile(`^[a-z]+$`)
	hashPattern              = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

// Content describes the archived payload.
type Content struct {
	Path        string   `json:"path"`
	Hash        string   `json:"hash"`
	SizeBytes   int64    `json:"size_bytes"`
	Mimetype    string   `json:"mimetype"`
	Attachments []string `json:"attachments,omitempty"`
}

// Relationship is a typed cross-reference, e.g. {"thread", "<other id>"}.
type Relationship struct {
	Type   string `json:"type"`
	Target string `json:"target_id"`
}

// Ingest records provenance of the ingest run that produced this sidecar.
type Ingest struct {
	Connector     string    `json:"connector"`
	IngestedAt    time.Time `json:"ingested_at"`
	Hostname      string    `json:"hostname,omitempty"`
	WorkflowRunID string    `json:"workflow_run_id,omitempty"`
}

// Memory records the optional semantic-indexing side effects. Mutated only
// by the Indexer, never by the archive writer.
type Memory struct {
	IndexedAt         *time.Time `json:"indexed_at,omitempty"`
	DocumentID        string     `json:"document_id,omitempty"`
	ChunksCreated      int        `json:"chunks_created,omitempty"`
	EmbeddingModel    string     `json:"embedding_model,omitempty"`
	EmbeddingProvider string     `json:"embedding_provider,omitempty"`
}

// Expense is the optional accounting block consumed by the CSV exporter.
type Expense struct {
	ExpenseDate      string `json:"expense_date"`
	Vendor           string `json:"vendor"`
	TotalAmount      string `json:"total_amount"`
	Currency         string `json:"currency"`
	InvoiceNumber    string `json:"invoice_number,omitempty"`
	SourceDocumentID string `json:"source_document_id,omitempty"`
	SourcePath       string `json:"source_path,omitempty"`
}

// Accounting wraps the optional expense block.
type Accounting struct {
	Expense *Expense `json:"expense,omitempty"`
}

// Document is the full side-car JSON document.
type Document struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Source    string          `json:"source"`
	Workflow  string          `json:"workflow,omitempty"`
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	Content       Content        `json:"content"`
	Origin        map[string]any `json:"origin"`
	Tags          []string       `json:"tags,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Ingest        Ingest         `json:"ingest"`
	Memory        Memory         `json:"llmemory"`
	Accounting    *Accounting    `json:"accounting,omitempty"`
}

// Validate checks Document against the schema rules: lowercase entity and
// source, size_bytes > 0, hash format, required fields present. Used both
// on write (fail fast) and on index (skip + log).
func Validate(d *Document) error {
	if d.ID == "" {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("id is required"))
	}
	if !lowerAlnumDashUnderscore.MatchString(d.Entity) {
		return errs.New(errs.SchemaValidationErr, "validate",
			fmt.Errorf("entity must be lower alnum/-/_: %q", d.Entity))
	}
	if !lowerSource.MatchString(d.Source) {
		return errs.New(errs.SchemaValidationErr, "validate",
			fmt.Errorf("source must be lowercase letters: %q", d.Source))
	}
	if d.Type == "" {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("type is required"))
	}
	if d.CreatedAt.IsZero() {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("created_at is required"))
	}
	if d.Content.SizeBytes <= 0 {
		return errs.New(errs.SchemaValidationErr, "validate",
			fmt.Errorf("content.size_bytes must be > 0, got %d", d.Content.SizeBytes))
	}
	if !hashPattern.MatchString(d.Content.Hash) {
		return errs.New(errs.SchemaValidationErr, "validate",
			fmt.Errorf("content.hash has invalid format: %q", d.Content.Hash))
	}
	if d.Content.Path == "" {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("content.path is required"))
	}
	if d.Origin == nil {
		d.Origin = map[string]any{}
	}
	if d.Ingest.Connector == "" {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("ingest.connector is required"))
	}
	if _, err := docid.Parse(d.ID); err != nil {
		return errs.New(errs.SchemaValidationErr, "validate", fmt.Errorf("invalid id: %w", err))
	}
	return nil
}

// MarshalCanonical serializes d with a stable key order, for reproducible
// tests and diffable sidecars. encoding/json already preserves struct field
// declaration order, so this is a thin indent wrapper kept as a single call
// site.
func MarshalCanonical(d *Document) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errs.New(errs.SchemaValidationErr, "marshal", err)
	}
	return b, nil
}

// Unmarshal parses and validates a sidecar document from JSON bytes.
func Unmarshal(b []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errs.New(errs.SchemaValidationErr, "unmarshal", err)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
