package archive

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juanre/mail-flow/internal/docid"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/sidecar"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func buildSidecar(id docid.ID, entity, source, workflowName, doctype string, createdAt time.Time,
	contentPath, contentHash string, sizeBytes int64, mimetype string, attachmentPaths []string,
	item *feature.Item, category string, confidence *float64) *sidecar.Document {

	attNames := make([]string, 0, len(attachmentPaths))
	for _, p := range attachmentPaths {
		attNames = append(attNames, filepath.Base(p))
	}

	doc := &sidecar.Document{
		ID:        id.String(),
		Entity:    entity,
		Source:    source,
		Workflow:  workflowName,
		Type:      doctype,
		CreatedAt: createdAt,
		Content: sidecar.Content{
			Path:        contentPath,
			Hash:        contentHash,
			SizeBytes:   sizeBytes,
			Mimetype:    mimetype,
			Attachments: attNames,
		},
		Origin: item.Origin,
		Ingest: sidecar.Ingest{
			Connector:  source,
			IngestedAt: time.Now().UTC(),
		},
	}

	if threadKey := feature.ThreadKey(item.Origin); threadKey != "" {
		doc.Relationships = append(doc.Relationships, sidecar.Relationship{
			Type:   "thread",
			Target: threadKey,
		})
	}

	if category != "" {
		doc.Tags = append(doc.Tags, category)
	}
	_ = confidence // surfaced via llmemory/index, not the sidecar schema itself

	return doc
}
