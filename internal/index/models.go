package index

import "time"

// DocumentRow is the gorm-mapped row for the `documents` table: one entry
// per archived content file, mirroring (but not duplicating) its sidecar.
type DocumentRow struct {
	ID             uint   `gorm:"primaryKey"`
	DocumentID     string `gorm:"uniqueIndex"`
	Entity         string `gorm:"index:idx_documents_entity_date"`
	Date           string `gorm:"index:idx_documents_entity_date"`
	Filename       string
	RelPath        string `gorm:"uniqueIndex:idx_documents_entity_relpath"`
	Hash           string
	Size           int64
	Type           string
	Source         string
	Workflow       string
	Category       string
	Confidence     *float64
	EmailSubject   string `gorm:"column:email_subject"`
	EmailFrom      string `gorm:"column:email_from"`
	SearchContent  string `gorm:"column:search_content"`
	OriginJSON     string `gorm:"column:origin_json"`
	StructuredJSON string `gorm:"column:structured_json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName pins the table name so gorm doesn't pluralize DocumentRow oddly.
func (DocumentRow) TableName() string { return "documents" }

// StreamRow is the gorm-mapped row for the `streams` table.
type StreamRow struct {
	ID                 uint   `gorm:"primaryKey"`
	Entity             string `gorm:"index:idx_streams_kind_channel"`
	Kind               string `gorm:"index:idx_streams_kind_channel"`
	ChannelOrMailbox   string `gorm:"index:idx_streams_kind_channel"`
	Date               string
	RelPath            string `gorm:"uniqueIndex:idx_streams_entity_relpath"`
	OriginJSON         string `gorm:"column:origin_json"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (StreamRow) TableName() string { return "streams" }

// LinkRow joins a stream to a document it references (a transcript
// mentioning an archived attachment, for example).
type LinkRow struct {
	ID         uint `gorm:"primaryKey"`
	StreamID   uint `gorm:"uniqueIndex:idx_links_stream_document"`
	DocumentID uint `gorm:"uniqueIndex:idx_links_stream_document"`
	CreatedAt  time.Time
}

func (LinkRow) TableName() string { return "links" }
