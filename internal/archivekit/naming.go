package archivekit

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/juanre/mail-flow/internal/docid"
	"github.com/juanre/mail-flow/internal/errs"
)

// mimeExtensions is the fixed mimetype->extension table.
var mimeExtensions = map[string]string{
	"application/pdf":         "pdf",
	"text/plain":              "txt",
	"text/html":               "html",
	"text/markdown":           "md",
	"application/json":        "json",
	"image/jpeg":              "jpg",
	"image/png":               "png",
	"image/gif":               "gif",
	"application/zip":         "zip",
	"application/gzip":        "gz",
	"text/csv":                "csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
}

const defaultExtension = "bin"

// DocumentID computes the canonical DocumentID for an archived item.
func DocumentID(source, workflowOrStream string, createdAt time.Time, contentHash string) (docid.ID, error) {
	return docid.New(source, workflowOrStream, createdAt, contentHash)
}

// FilenameBase returns "{YYYY-MM-DD}-{source}-{base36(epoch_seconds)}".
func FilenameBase(source string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s",
		createdAt.UTC().Format("2006-01-02"),
		source,
		strconv.FormatInt(createdAt.UTC().Unix(), 36))
}

// ExtensionFor prefers the original filename's extension when present and
// non-empty; otherwise falls back to the fixed mimetype table, defaulting
// to "bin".
func ExtensionFor(mimetype string, originalFilename string) string {
	if originalFilename != "" {
		ext := strings.TrimPrefix(filepath.Ext(originalFilename), ".")
		if ext != "" {
			return strings.ToLower(ext)
		}
	}
	if ext, ok := mimeExtensions[strings.ToLower(mimetype)]; ok {
		return ext
	}
	return defaultExtension
}

var (
	controlBytes   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	illegalChars   = regexp.MustCompile(`[<>:"|?*\\]`)
	separatorRuns  = regexp.MustCompile(`-{2,}`)
	leadTrailDots  = regexp.MustCompile(`^[.\-]+|[.\-]+$`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	nonNormalChars = regexp.MustCompile(`[^a-z0-9._-]`)
)

// SanitizeFilename strips directory components, replaces `<>:"|?*` and
// control bytes with "-", collapses runs of separators, trims leading and
// trailing "." and "-", and preserves at most one extension when truncating
// to max bytes.
func SanitizeFilename(name string, max int) string {
	if max <= 0 {
		max = 200
	}
	name = filepath.Base(name)
	name = controlBytes.ReplaceAllString(name, "-")
	name = illegalChars.ReplaceAllString(name, "-")
	name = separatorRuns.ReplaceAllString(name, "-")
	name = leadTrailDots.ReplaceAllString(name, "")

	if len(name) <= max {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	// Preserve one extension; truncate the base to fit.
	keep := max - len(ext)
	if keep < 1 {
		return name[:max]
	}
	if keep > len(base) {
		keep = len(base)
	}
	return base[:keep] + ext
}

// NormalizeNameBase lowercases, maps whitespace to "-", keeps only
// [a-z0-9._-], collapses runs, and trims, truncating to max. Used to
// archive original filenames under originals/.
func NormalizeNameBase(name string, max int) string {
	if max <= 0 {
		max = 120
	}
	name = strings.ToLower(name)
	name = whitespaceRun.ReplaceAllString(name, "-")
	name = nonNormalChars.ReplaceAllString(name, "")
	name = separatorRuns.ReplaceAllString(name, "-")
	name = leadTrailDots.ReplaceAllString(name, "")
	if len(name) > max {
		name = name[:max]
	}
	return name
}

// ResolveCollision returns the first of base, base+"-1", base+"-2", ...
// base+"-999" for which exists(candidate) is false, trying up to 999
// suffixes before surfacing a CollisionError.
func ResolveCollision(base string, exists func(candidate string) bool) (string, error) {
	if !exists(base) {
		return base, nil
	}
	for n := 1; n <= 999; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", errs.New(errs.CollisionError, "resolve-collision",
		fmt.Errorf("no free suffix for base %q after 999 attempts", base))
}
