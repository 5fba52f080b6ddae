// Package docid implements the canonical document identifier:
//
//	{source}={workflow_or_stream}/{created_at_iso8601Z}/sha256:{hex64}
//
// ID is an immutable value type with a smart constructor that parses (never
// regexes ad hoc at call sites), String()/MarshalJSON symmetry, and a
// Scan/Value pair so it drops straight into a gorm column.
package docid

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var hashPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// ID is a parsed, validated DocumentID.
type ID struct {
	source   string
	stream   string // workflow name or stream kind/channel path
	created  time.Time
	sha256   string // "sha256:" + 64 lowercase hex chars
}

// New constructs an ID from its parts, validating the hash format.
func New(source, streamOrWorkflow string, createdAt time.Time, sha256Hash string) (ID, error) {
	if source == "" {
		return ID{}, fmt.Errorf("docid: source cannot be empty")
	}
	if streamOrWorkflow == "" {
		return ID{}, fmt.Errorf("docid: workflow/stream cannot be empty")
	}
	if !hashPattern.MatchString(sha256Hash) {
		return ID{}, fmt.Errorf("docid: invalid content hash format: %q", sha256Hash)
	}
	return ID{
		source:  source,
		stream:  streamOrWorkflow,
		created: createdAt.UTC(),
		sha256:  sha256Hash,
	}, nil
}

// Source returns the originating source (mail|slack|gdocs|localdocs|other).
func (i ID) Source() string { return i.source }

// Stream returns the workflow name or stream path component.
func (i ID) Stream() string { return i.stream }

// CreatedAt returns the UTC creation timestamp encoded in the ID.
func (i ID) CreatedAt() time.Time { return i.created }

// Hash returns the "sha256:hex64" content hash.
func (i ID) Hash() string { return i.sha256 }

// IsZero reports whether this is the unset ID.
func (i ID) IsZero() bool { return i.source == "" }

// String renders the canonical form:
// "{source}={workflow_or_stream}/{created_at_iso8601Z}/sha256:{hex64}".
func (i ID) String() string {
	if i.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s=%s/%s/%s",
		i.source, i.stream, i.created.Format("2006-01-02T15:04:05Z"), i.sha256)
}

// Parse splits a DocumentID string on the first "=", then on the last two
// "/" (hash after the last, timestamp after the one before it), so stream
// names containing "/" round-trip correctly.
func Parse(s string) (ID, error) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return ID{}, fmt.Errorf("docid: missing '=' separator in %q", s)
	}
	source := s[:eq]
	rest := s[eq+1:]

	lastSlash := strings.LastIndex(rest, "/")
	if lastSlash < 0 {
		return ID{}, fmt.Errorf("docid: missing first '/' separator in %q", s)
	}
	hash := rest[lastSlash+1:]
	rest = rest[:lastSlash]

	createdSlash := strings.LastIndex(rest, "/")
	if createdSlash < 0 {
		return ID{}, fmt.Errorf("docid: missing second '/' separator in %q", s)
	}
	stream := rest[:createdSlash]
	createdStr := rest[createdSlash+1:]

	created, err := time.Parse("2006-01-02T15:04:05Z", createdStr)
	if err != nil {
		return ID{}, fmt.Errorf("docid: invalid timestamp %q: %w", createdStr, err)
	}

	return New(source, stream, created, hash)
}

// MarshalJSON implements json.Marshaler.
func (i ID) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("docid: must be a string: %w", err)
	}
	if s == "" {
		*i = ID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(value interface{}) error {
	if value == nil {
		*i = ID{}
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("docid: cannot scan %T", value)
	}
	if s == "" {
		*i = ID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer.
func (i ID) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.String(), nil
}
