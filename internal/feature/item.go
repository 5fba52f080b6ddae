// Package feature normalizes raw source bytes plus source-declared origin
// metadata into a uniform, ephemeral Item record that the rest of the
// pipeline consumes.
package feature

import "time"

// MaxEmailSizeMB bounds raw input size.
const MaxEmailSizeMB = 25

// MaxAttachmentCount bounds attachment enumeration.
const MaxAttachmentCount = 100

// MaxSubjectTokens / MaxBodyTokens bound the token sets.
const (
	MaxSubjectTokens = 100
	MaxBodyTokens    = 200
)

// MaxBodyChars bounds plain-text body length, truncated to a configurable
// limit; used as the default when Config.MaxBodyChars is 0.
const MaxBodyChars = 200_000

// Attachment describes one attachment on an ingested item.
type Attachment struct {
	Filename   string
	Mime       string
	Size       int64
	IsPDF      bool
	PayloadRef []byte
}

// Features are the normalized signals the Similarity Engine scores
// against.
type Features struct {
	FromDomain     string
	SubjectTokens  map[string]struct{}
	BodyTokens     map[string]struct{}
	HasPDF         bool
	To             string
	NumAttachments int
}

// Item is the in-memory, per-ingest-event record produced by the feature
// extractor. It is ephemeral and never persisted as-is.
type Item struct {
	Source      string // mail|slack|gdocs|localdocs|other
	Origin      map[string]any
	Body        string
	BodyHTML    string
	Attachments []Attachment
	Features    Features
}

// MessageID returns origin["message_id"] if present, else "".
func (it *Item) MessageID() string {
	if v, ok := it.Origin["message_id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Date returns origin["date"] as a time.Time if present and parseable.
func (it *Item) Date() (time.Time, bool) {
	v, ok := it.Origin["date"]
	if !ok {
		return time.Time{}, false
	}
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
