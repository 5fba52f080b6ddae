// Package index maintains the queryable metadata store over the archive:
// a gorm/sqlite table per entity kind plus a bleve full-text index, kept in
// sync by upserting whatever the archive writer or a reindex walk produces.
// It never mutates the archive itself; it only reflects it.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juanre/mail-flow/internal/errs"
)

// Config configures an Index's storage locations.
type Config struct {
	DBPath   string // path to the sqlite metadata.db file
	BleveDir string // directory holding the bleve full-text index
	Logger   hclog.Logger
}

// Index wraps the metadata database and the full-text search index that
// mirrors it.
type Index struct {
	db     *gorm.DB
	full   bleve.Index
	logger hclog.Logger
}

// New opens (creating if absent) the metadata database and bleve index at
// the configured paths, running any pending schema migrations first.
func New(cfg Config) (*Index, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.New(errs.IOError, "index-new", err)
		}
	}

	sqlDB, err := openSQL(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(sqlDB); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, errs.New(errs.IOError, "index-new", fmt.Errorf("open gorm: %w", err))
	}

	full, err := openBleve(cfg.BleveDir)
	if err != nil {
		return nil, err
	}

	return &Index{db: db, full: full, logger: logger}, nil
}

// nonEmpty returns the non-empty strings among vs, in order.
func nonEmpty(vs ...string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func openBleve(dir string) (bleve.Index, error) {
	if _, err := os.Stat(dir); err == nil {
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, errs.New(errs.IOError, "index-open-bleve", err)
		}
		return idx, nil
	}
	idx, err := bleve.New(dir, documentMapping())
	if err != nil {
		return nil, errs.New(errs.IOError, "index-create-bleve", err)
	}
	return idx, nil
}

func documentMapping() mapping.IndexMapping {
	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	text := bleve.NewTextFieldMapping()

	date := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("entity", keyword)
	doc.AddFieldMappingsAt("source", keyword)
	doc.AddFieldMappingsAt("workflow", keyword)
	doc.AddFieldMappingsAt("category", keyword)
	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("filename", text)
	doc.AddFieldMappingsAt("email_subject", text)
	doc.AddFieldMappingsAt("email_from", text)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("created_at", date)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// searchDoc is the flattened record bleve indexes; it carries just enough
// of DocumentRow to filter and rank, not the full sidecar.
type searchDoc struct {
	DocumentID   string    `json:"document_id"`
	Entity       string    `json:"entity"`
	Source       string    `json:"source"`
	Workflow     string    `json:"workflow"`
	Category     string    `json:"category"`
	Type         string    `json:"type"`
	Filename     string    `json:"filename"`
	EmailSubject string    `json:"email_subject"`
	EmailFrom    string    `json:"email_from"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpsertDocument writes row to the metadata table, updating only mutable
// fields on conflict with its (entity, rel_path) pair, and refreshes the
// matching full-text entry.
func (ix *Index) UpsertDocument(row DocumentRow) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	err := ix.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity"}, {Name: "rel_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hash", "size", "workflow", "category", "confidence",
			"email_subject", "email_from", "search_content",
			"origin_json", "structured_json", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return errs.New(errs.IOError, "upsert-document", err)
	}

	sd := searchDoc{
		DocumentID:   row.DocumentID,
		Entity:       row.Entity,
		Source:       row.Source,
		Workflow:     row.Workflow,
		Category:     row.Category,
		Type:         row.Type,
		Filename:     row.Filename,
		EmailSubject: row.EmailSubject,
		EmailFrom:    row.EmailFrom,
		Text:         strings.Join(nonEmpty(row.Filename, row.EmailSubject, row.EmailFrom, row.SearchContent), " "),
		CreatedAt:    row.CreatedAt,
	}
	if err := ix.full.Index(row.DocumentID, sd); err != nil {
		return errs.New(errs.IOError, "upsert-document-fulltext", err)
	}
	return nil
}

// UpsertStream writes row to the streams table, updating only its
// origin_json on conflict with its (entity, rel_path) pair.
func (ix *Index) UpsertStream(row StreamRow) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	err := ix.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity"}, {Name: "rel_path"}},
		DoUpdates: clause.AssignmentColumns([]string{"origin_json", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errs.New(errs.IOError, "upsert-stream", err)
	}
	return nil
}

// AddLink records that streamID references documentID, ignoring the write
// if the pair is already linked.
func (ix *Index) AddLink(streamID, documentID uint) error {
	link := LinkRow{StreamID: streamID, DocumentID: documentID, CreatedAt: time.Now().UTC()}
	err := ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	if err != nil {
		return errs.New(errs.IOError, "add-link", err)
	}
	return nil
}

// Filter narrows Search to an equality match on any non-empty field.
type Filter struct {
	Entity   string
	Source   string
	Workflow string
	Category string
}

// Result is one row returned by Search.
type Result struct {
	DocumentID string
	Entity     string
	RelPath    string
	Filename   string
	Date       string
	Score      float64
}

// Search returns matching documents ranked by bleve's BM25 score when query
// is non-empty, otherwise ordered by (date DESC, id DESC). Filter fields
// compose as equality predicates against the metadata table.
func (ix *Index) Search(ctx context.Context, query string, filter Filter, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}

	if query == "" {
		return ix.searchByFilterOnly(filter, limit)
	}

	bq := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(bq, limit, 0, false)
	req.Fields = []string{"document_id"}
	sr, err := ix.full.SearchInContext(ctx, req)
	if err != nil {
		return nil, errs.New(errs.IOError, "search-fulltext", err)
	}

	results := make([]Result, 0, len(sr.Hits))
	for _, hit := range sr.Hits {
		var row DocumentRow
		q := ix.db.Where("document_id = ?", hit.ID)
		applyFilter(q, filter)
		if err := q.First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, errs.New(errs.IOError, "search-lookup", err)
		}
		results = append(results, Result{
			DocumentID: row.DocumentID,
			Entity:     row.Entity,
			RelPath:    row.RelPath,
			Filename:   row.Filename,
			Date:       row.Date,
			Score:      hit.Score,
		})
	}
	return results, nil
}

func (ix *Index) searchByFilterOnly(filter Filter, limit int) ([]Result, error) {
	var rows []DocumentRow
	q := ix.db.Order("date DESC").Order("id DESC").Limit(limit)
	applyFilter(q, filter)
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.New(errs.IOError, "search-by-filter", err)
	}
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			DocumentID: row.DocumentID,
			Entity:     row.Entity,
			RelPath:    row.RelPath,
			Filename:   row.Filename,
			Date:       row.Date,
		})
	}
	return results, nil
}

func applyFilter(q *gorm.DB, filter Filter) *gorm.DB {
	if filter.Entity != "" {
		q.Where("entity = ?", filter.Entity)
	}
	if filter.Source != "" {
		q.Where("source = ?", filter.Source)
	}
	if filter.Workflow != "" {
		q.Where("workflow = ?", filter.Workflow)
	}
	if filter.Category != "" {
		q.Where("category = ?", filter.Category)
	}
	return q
}

// Close releases the database and full-text index handles.
func (ix *Index) Close() error {
	var firstErr error
	if err := ix.full.Close(); err != nil {
		firstErr = err
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if err := sqlDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return errs.New(errs.IOError, "index-close", firstErr)
	}
	return nil
}
