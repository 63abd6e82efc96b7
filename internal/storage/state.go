// Package storage keeps JSON documents in the resource_state table and
// builds the panel snapshot store on top of it.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Document is one stored (kind, id) entry.
type Document struct {
	Kind      string
	ID        string
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}

// Store is a versioned JSON document store keyed by (kind, id).
type Store struct {
	db *sql.DB
}

// NewStore creates a new document store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the document for (kind, id); ok is false when it does not exist.
func (s *Store) Get(kind, id string) (doc Document, ok bool, err error) {
	var payload string
	var updated int64
	err = s.db.QueryRow(`
		SELECT payload, version, updated_at FROM resource_state
		WHERE kind = ? AND id = ?
	`, kind, id).Scan(&payload, &doc.Version, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("get %s/%s: %w", kind, id, err)
	}

	doc.Kind, doc.ID = kind, id
	doc.Payload = []byte(payload)
	doc.UpdatedAt = time.UnixMilli(updated).UTC()
	return doc, true, nil
}

// Put stores payload and returns the new version, starting at 1.
func (s *Store) Put(kind, id string, payload []byte) (int64, error) {
	var version int64
	err := s.db.QueryRow(`
		INSERT INTO resource_state (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
		RETURNING version
	`, kind, id, string(payload), time.Now().UnixMilli()).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", kind, id, err)
	}

	log.Debug().
		Str("kind", kind).
		Str("id", id).
		Int64("version", version).
		Msg("Stored document")
	return version, nil
}

// Delete removes one document. Deleting a missing document is not an error.
func (s *Store) Delete(kind, id string) error {
	_, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ? AND id = ?`, kind, id)
	return err
}

// Clear removes every document of a kind, or all documents when kind is
// empty, and reports how many were removed.
func (s *Store) Clear(kind string) (int64, error) {
	var res sql.Result
	var err error
	if kind == "" {
		res, err = s.db.Exec(`DELETE FROM resource_state`)
	} else {
		res, err = s.db.Exec(`DELETE FROM resource_state WHERE kind = ?`, kind)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns the documents of a kind ordered by id.
func (s *Store) List(kind string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, payload, version, updated_at FROM resource_state
		WHERE kind = ? ORDER BY id
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc := Document{Kind: kind}
		var payload string
		var updated int64
		if err := rows.Scan(&doc.ID, &payload, &doc.Version, &updated); err != nil {
			return nil, err
		}
		doc.Payload = []byte(payload)
		doc.UpdatedAt = time.UnixMilli(updated).UTC()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetJSON decodes the document for (kind, id) into v.
// Returns false if it does not exist.
func (s *Store) GetJSON(kind, id string, v any) (bool, error) {
	doc, ok, err := s.Get(kind, id)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(doc.Payload, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it.
func (s *Store) PutJSON(kind, id string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}
	_, err = s.Put(kind, id, payload)
	return err
}
