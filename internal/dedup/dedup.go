// Package dedup implements the dedup tracker: a small, single-writer
// persistent KV store keyed by (content_hash, message_id?) recording which
// payloads have already been archived.
package dedup

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/juanre/mail-flow/internal/archivekit"
	"github.com/juanre/mail-flow/internal/errs"
)

var (
	hashBucket      = []byte("by_hash")
	messageIDBucket = []byte("by_message_id")
)

// Record is a dedup entry.
type Record struct {
	ContentHash  string    `json:"content_hash"`
	MessageID    string    `json:"message_id,omitempty"`
	WorkflowName string    `json:"workflow_name"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Tracker is the persistent dedup store.
type Tracker struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the dedup database at path.
func Open(path string) (*Tracker, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.New(errs.IOError, "open-dedup-db", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(hashBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(messageIDBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.New(errs.IOError, "init-dedup-db", err)
	}
	return &Tracker{db: db}, nil
}

// Close closes the underlying database.
func (t *Tracker) Close() error { return t.db.Close() }

// IsProcessed reports whether payload (identified by message_id when
// provided, else by content hash) has already been archived.
func (t *Tracker) IsProcessed(payload []byte, messageID string) (bool, error) {
	rec, err := t.GetInfo(payload, messageID)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// GetInfo looks up the dedup record for payload, checking message_id first
// when provided, else the content hash.
func (t *Tracker) GetInfo(payload []byte, messageID string) (*Record, error) {
	hash := archivekit.Hash(payload)
	var rec *Record

	err := t.db.View(func(tx *bbolt.Tx) error {
		if messageID != "" {
			if raw := tx.Bucket(messageIDBucket).Get([]byte(messageID)); raw != nil {
				var r Record
				if err := json.Unmarshal(raw, &r); err != nil {
					return err
				}
				rec = &r
				return nil
			}
		}
		if raw := tx.Bucket(hashBucket).Get([]byte(hash)); raw != nil {
			var r Record
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			rec = &r
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.IOError, "get-info", err)
	}
	return rec, nil
}

// MarkProcessed upserts a dedup record for payload. A successfully archived
// content_hash must be recorded before the caller reports success, so
// failures here are fatal to the caller, never silently swallowed.
func (t *Tracker) MarkProcessed(payload []byte, messageID, workflowName string) error {
	hash := archivekit.Hash(payload)
	rec := Record{
		ContentHash:  hash,
		MessageID:    messageID,
		WorkflowName: workflowName,
		ProcessedAt:  time.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.New(errs.IOError, "marshal-record", err)
	}

	err = t.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(hashBucket).Put([]byte(hash), raw); err != nil {
			return err
		}
		if messageID != "" {
			if err := tx.Bucket(messageIDBucket).Put([]byte(messageID), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.New(errs.IOError, "mark-processed", fmt.Errorf("content_hash=%s: %w", hash, err))
	}
	return nil
}
