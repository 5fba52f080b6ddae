// Package archive implements the ordered content+sidecar write sequence
// that turns a classified Item into durable files on disk.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/archivekit"
	"github.com/juanre/mail-flow/internal/docid"
	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/renderer"
	"github.com/juanre/mail-flow/internal/sidecar"
	"github.com/juanre/mail-flow/internal/workflow"
)

// Config configures a Writer.
type Config struct {
	BasePath            string
	SaveOriginals       bool
	OriginalsPrefixDate bool
	ConvertAttachments  bool
	ManifestEnabled     bool
	Logger              hclog.Logger
}

// Writer performs the ordered write sequence for one archived item.
type Writer struct {
	cfg      Config
	store    *archivekit.Store
	renderer renderer.PDFRenderer
	logger   hclog.Logger
}

// New creates a Writer.
func New(cfg Config, rnd renderer.PDFRenderer) *Writer {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Writer{
		cfg:      cfg,
		store:    archivekit.NewStore(archivekit.StoreConfig{Logger: cfg.Logger}),
		renderer: rnd,
		logger:   cfg.Logger.Named("archive-writer"),
	}
}

// Result is the outcome of one successful write.
type Result struct {
	DocumentID      docid.ID
	ContentPath     string
	MetadataPath    string
	AttachmentPaths []string
	OriginalPaths   []string
}

// Request bundles everything the writer needs for one document.
type Request struct {
	Item             *feature.Item
	Workflow         *workflow.Workflow // nil implies stream mode; StreamKind/StreamChannel must be set
	Payload          []byte             // primary content bytes; empty => rendered from Item.Body
	Mimetype         string
	OriginalFilename string

	StreamEntity           string // required when Workflow is nil
	StreamKind             string
	StreamChannelOrMailbox string

	Category   string
	Confidence *float64
}

// Write runs the ordered write sequence: resolve identity, compute hash and
// DocumentID, create target directory, choose a collision-free name, render
// or copy content, write attachments (with optional transcoding), optionally
// copy originals, build, validate and write the sidecar, and append the
// manifest.
// Any failure from content write onward rolls back everything this call
// created.
func (w *Writer) Write(ctx context.Context, req Request) (*Result, error) {
	isStream := req.Workflow == nil

	entity, doctype, workflowName, streamSegment, err := resolveIdentity(req)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	if t, ok := req.Item.Date(); ok && !t.IsZero() {
		createdAt = t.UTC()
	}

	payload := req.Payload
	wasRendered := len(payload) == 0
	if wasRendered {
		rendered, err := w.renderBody(ctx, req.Item)
		if err != nil {
			return nil, err
		}
		payload = rendered
	}

	contentHash := archivekit.Hash(payload)

	idSegment := workflowName
	if isStream {
		idSegment = streamSegment
	}
	id, err := archivekit.DocumentID(req.Item.Source, idSegment, createdAt, contentHash)
	if err != nil {
		return nil, errs.New(errs.DataIntegrityError, "document-id", err)
	}

	var targetDir string
	if isStream {
		targetDir, err = archivekit.SafeJoin(w.cfg.BasePath, entity, "streams", req.StreamKind,
			sanitizeSegment(req.StreamChannelOrMailbox), createdAt.Format("2006"))
	} else {
		targetDir, err = archivekit.SafeJoin(w.cfg.BasePath, entity, "docs", createdAt.Format("2006"))
	}
	if err != nil {
		return nil, err
	}

	created := newCleanupSet(w.store, w.logger)

	base := archivekit.FilenameBase(req.Item.Source, createdAt)
	ext := archivekit.ExtensionFor(req.Mimetype, req.OriginalFilename)
	if wasRendered && req.Mimetype == "" {
		ext = "pdf"
	}
	filenameBase, err := archivekit.ResolveCollision(filepath.Join(targetDir, base), func(candidate string) bool {
		return fileExists(candidate + "." + ext)
	})
	if err != nil {
		return nil, err
	}
	filenameBase = filepath.Base(filenameBase)

	contentPath := filepath.Join(targetDir, filenameBase+"."+ext)
	if err := w.store.WriteAtomic(contentPath, payload); err != nil {
		return nil, err
	}
	created.add(contentPath)

	attachmentPaths, err := w.writeAttachments(ctx, targetDir, filenameBase, req.Item.Attachments, created)
	if err != nil {
		created.rollback()
		return nil, err
	}

	var originalPaths []string
	if w.cfg.SaveOriginals && req.OriginalFilename != "" {
		p, err := w.writeOriginal(entity, createdAt, req.OriginalFilename, payload)
		if err != nil {
			created.rollback()
			return nil, err
		}
		created.add(p)
		originalPaths = append(originalPaths, p)
	}

	doc := buildSidecar(id, entity, req.Item.Source, workflowName, doctype, createdAt,
		contentPath, contentHash, int64(len(payload)), req.Mimetype, attachmentPaths, req.Item, req.Category, req.Confidence)

	if err := sidecar.Validate(doc); err != nil {
		created.rollback()
		return nil, err
	}
	sidecarBytes, err := sidecar.MarshalCanonical(doc)
	if err != nil {
		created.rollback()
		return nil, err
	}
	metadataPath := filepath.Join(targetDir, filenameBase+".json")
	if err := w.store.WriteAtomic(metadataPath, sidecarBytes); err != nil {
		created.rollback()
		return nil, err
	}
	created.add(metadataPath)

	if w.cfg.ManifestEnabled {
		if err := w.appendManifest(targetDir, id, metadataPath); err != nil {
			created.rollback()
			return nil, err
		}
	}

	return &Result{
		DocumentID:      id,
		ContentPath:     contentPath,
		MetadataPath:    metadataPath,
		AttachmentPaths: attachmentPaths,
		OriginalPaths:   originalPaths,
	}, nil
}

func resolveIdentity(req Request) (entity, doctype, workflowName, streamSegment string, err error) {
	if req.Workflow != nil {
		return req.Workflow.Entity, req.Workflow.Doctype, req.Workflow.Name, "", nil
	}
	if req.StreamEntity == "" || req.StreamKind == "" || req.StreamChannelOrMailbox == "" {
		return "", "", "", "", errs.New(errs.SchemaValidationErr, "resolve-identity",
			fmt.Errorf("stream writes require StreamEntity, StreamKind, and StreamChannelOrMailbox"))
	}
	seg := fmt.Sprintf("%s:%s", req.StreamKind, sanitizeSegment(req.StreamChannelOrMailbox))
	return req.StreamEntity, req.StreamKind, "", seg, nil
}

func sanitizeSegment(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}

func (w *Writer) renderBody(ctx context.Context, it *feature.Item) ([]byte, error) {
	if w.renderer == nil {
		return nil, errs.New(errs.RendererError, "render-body", fmt.Errorf("no PDF renderer configured"))
	}
	if it.BodyHTML != "" {
		b, err := w.renderer.RenderHTML(ctx, it.BodyHTML, renderer.Options{})
		if err != nil {
			return nil, errs.New(errs.RendererError, "render-html", err)
		}
		return b, nil
	}
	b, err := w.renderer.RenderText(ctx, it.Body)
	if err != nil {
		return nil, errs.New(errs.RendererError, "render-text", err)
	}
	return b, nil
}

func (w *Writer) writeAttachments(ctx context.Context, targetDir, filenameBase string, atts []feature.Attachment, created *cleanupSet) ([]string, error) {
	var paths []string
	for n, att := range atts {
		payload := att.PayloadRef
		ext := archivekit.ExtensionFor(att.Mime, att.Filename)

		if w.cfg.ConvertAttachments {
			switch {
			case strings.HasPrefix(att.Mime, "text/tab-separated-values"):
				payload = tsvToCSV(payload)
				ext = "csv"
			case strings.HasPrefix(att.Mime, "text/"):
				rendered, err := w.renderer.RenderText(ctx, string(payload))
				if err != nil {
					return nil, errs.New(errs.RendererError, "convert-attachment", err)
				}
				payload = rendered
				ext = "pdf"
			}
		}

		path := filepath.Join(targetDir, fmt.Sprintf("%s-att%d.%s", filenameBase, n+1, ext))
		if err := w.store.WriteAtomic(path, payload); err != nil {
			return nil, err
		}
		created.add(path)
		paths = append(paths, path)
	}
	return paths, nil
}

// tsvToCSV converts tab-separated values to comma-separated, preserving LF
// line endings and leaving already-quoted/escaped content untouched (this
// is a byte-level tab->comma swap, matching the source format's own
// simplicity — no embedded tabs or commas are expected in these fields).
func tsvToCSV(tsv []byte) []byte {
	return []byte(strings.ReplaceAll(string(tsv), "\t", ","))
}

func (w *Writer) writeOriginal(entity string, createdAt time.Time, originalFilename string, payload []byte) (string, error) {
	dir, err := archivekit.SafeJoin(w.cfg.BasePath, entity, "originals", createdAt.Format("2006"))
	if err != nil {
		return "", err
	}
	name := archivekit.NormalizeNameBase(strings.TrimSuffix(originalFilename, filepath.Ext(originalFilename)), 120)
	ext := strings.TrimPrefix(filepath.Ext(originalFilename), ".")
	if ext == "" {
		ext = "bin"
	}
	if w.cfg.OriginalsPrefixDate {
		name = createdAt.Format("2006-01-02") + "-" + name
	}
	resolved, err := archivekit.ResolveCollision(filepath.Join(dir, name), func(candidate string) bool {
		return fileExists(candidate + "." + ext)
	})
	if err != nil {
		return "", err
	}
	path := resolved + "." + ext
	if err := w.store.WriteAtomic(path, payload); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) appendManifest(targetDir string, id docid.ID, metadataPath string) error {
	lock := archivekit.NewFileLock(filepath.Join(targetDir, "manifest.jsonl"))
	if err := lock.Acquire(10 * time.Second); err != nil {
		return err
	}
	defer lock.Release()

	line := fmt.Sprintf(`{"document_id":%q,"metadata_path":%q,"timestamp":%q}`,
		id.String(), metadataPath, time.Now().UTC().Format(time.RFC3339))
	return w.store.AppendLine(filepath.Join(targetDir, "manifest.jsonl"), line)
}
