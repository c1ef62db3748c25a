package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLite stores document versions in a single table with a monotonic
// sequence column preserving insertion order per document.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStorage, err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id     TEXT NOT NULL,
		version    TEXT NOT NULL,
		body       JSON NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (doc_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_doc_id ON documents (doc_id);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStorage, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, doc *contracts.Document) error {
	if _, err := storageKey(doc.ID, doc.Version); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	query := `INSERT INTO documents (doc_id, version, body, created_at) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Version, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrVersionExists, doc.StorageKey())
		}
		return fmt.Errorf("%w: insert: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id, version string) (*contracts.Document, error) {
	query := `SELECT body FROM documents WHERE doc_id = ? AND version = ?`
	return s.queryOne(ctx, query, fmt.Sprintf("%s:%s", id, version), id, version)
}

func (s *SQLite) Latest(ctx context.Context, id string) (*contracts.Document, error) {
	query := `SELECT body FROM documents WHERE doc_id = ? ORDER BY seq DESC LIMIT 1`
	return s.queryOne(ctx, query, id, id)
}

func (s *SQLite) Versions(ctx context.Context, id string) ([]string, error) {
	query := `SELECT version FROM documents WHERE doc_id = ? ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStorage, err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrStorage, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return versions, nil
}

func (s *SQLite) queryOne(ctx context.Context, query, key string, args ...any) (*contracts.Document, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: scan: %v", ErrStorage, err)
	}
	var doc contracts.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return &doc, nil
}
