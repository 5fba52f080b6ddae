package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/juanre/mail-flow/internal/index"
	"github.com/juanre/mail-flow/internal/sidecar"
)

// IndexCommand walks the archive tree and (re)populates the global index
// from every sidecar it finds.
type IndexCommand struct {
	UI     cli.Ui
	Logger hclog.Logger
}

func (c *IndexCommand) Help() string {
	return "Usage: archivist index [--base PATH]\n\n" +
		"Rebuild the metadata and full-text index from every sidecar on disk."
}

func (c *IndexCommand) Synopsis() string { return "Rebuild the global index" }

func (c *IndexCommand) Run(args []string) int {
	var base string
	fs2 := flag.NewFlagSet("index", flag.ContinueOnError)
	fs2.StringVar(&base, "base", "", "base directory (default: current directory)")
	if err := fs2.Parse(args); err != nil {
		return ExitInputError
	}
	base = defaultBase(base)

	cfg := loadConfigOrDefault(base, c.Logger)

	ix, err := index.New(index.Config{
		DBPath:   filepath.Join(base, "indexes", "metadata.db"),
		BleveDir: filepath.Join(base, "indexes", "full.bleve"),
		Logger:   c.Logger,
	})
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}
	defer ix.Close()

	indexed, skipped, err := reindex(ix, cfg.Archive.BasePath, c.Logger)
	if err != nil {
		c.UI.Error(err.Error())
		return exitCodeFor(err)
	}

	c.UI.Output(fmt.Sprintf("indexed=%d skipped=%d", indexed, skipped))
	return ExitOK
}

// reindex walks basePath for sidecar JSON files and upserts each one into
// ix, skipping (and logging) any that fail validation.
func reindex(ix *index.Index, basePath string, logger hclog.Logger) (indexed, skipped int, err error) {
	walkErr := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			if path == basePath {
				return werr
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		raw, rErr := os.ReadFile(path)
		if rErr != nil {
			logger.Warn("failed to read sidecar", "path", path, "error", rErr)
			skipped++
			return nil
		}
		doc, pErr := sidecar.Unmarshal(raw)
		if pErr != nil {
			logger.Warn("skipping invalid sidecar", "path", path, "error", pErr)
			skipped++
			return nil
		}

		relPath, relErr := filepath.Rel(basePath, doc.Content.Path)
		if relErr != nil || strings.HasPrefix(relPath, "..") {
			relPath = doc.Content.Path
		}
		originJSON, _ := json.Marshal(doc.Origin)
		subject, _ := doc.Origin["subject"].(string)
		from, _ := doc.Origin["from"].(string)

		if doc.Workflow == "" && strings.Contains(doc.Content.Path, string(filepath.Separator)+"streams"+string(filepath.Separator)) {
			kind, channel := streamKindAndChannel(doc)
			if uErr := ix.UpsertStream(index.StreamRow{
				Entity:           doc.Entity,
				Kind:             kind,
				ChannelOrMailbox: channel,
				Date:             doc.CreatedAt.Format("2006-01-02"),
				RelPath:          relPath,
				OriginJSON:       string(originJSON),
			}); uErr != nil {
				logger.Warn("failed to index stream", "path", path, "error", uErr)
				skipped++
				return nil
			}
			indexed++
			return nil
		}

		if uErr := ix.UpsertDocument(index.DocumentRow{
			DocumentID:    doc.ID,
			Entity:        doc.Entity,
			Date:          doc.CreatedAt.Format("2006-01-02"),
			Filename:      filepath.Base(doc.Content.Path),
			RelPath:       relPath,
			Hash:          doc.Content.Hash,
			Size:          doc.Content.SizeBytes,
			Type:          doc.Type,
			Source:        doc.Source,
			Workflow:      doc.Workflow,
			Category:      doc.Workflow,
			EmailSubject:  subject,
			EmailFrom:     from,
			SearchContent: readTextContent(doc.Content.Path, doc.Content.Mimetype),
			OriginJSON:    string(originJSON),
		}); uErr != nil {
			logger.Warn("failed to index document", "path", path, "error", uErr)
			skipped++
			return nil
		}
		indexed++
		return nil
	})
	if walkErr != nil {
		return indexed, skipped, walkErr
	}
	return indexed, skipped, nil
}

// readTextContent re-reads an archived content file's text for the
// full-text index, for mimetypes that store searchable text directly.
// Rendered PDFs aren't re-extracted here; their subject/from/filename
// still match via the other searchDoc fields.
const maxReindexSearchChars = 200_000

func readTextContent(path, mimetype string) string {
	switch {
	case strings.HasPrefix(mimetype, "text/"):
	default:
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(b) > maxReindexSearchChars {
		b = b[:maxReindexSearchChars]
	}
	return string(b)
}

func streamKindAndChannel(doc *sidecar.Document) (kind, channel string) {
	kind = doc.Source
	if v, ok := doc.Origin["channel"].(string); ok {
		channel = v
	} else if v, ok := doc.Origin["permalink"].(string); ok {
		channel = v
	}
	return kind, channel
}
