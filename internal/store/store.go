// Package store persists service API keys and archived ranking batches in
// a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/bidrank/internal/rank"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key or batch does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id INTEGER PRIMARY KEY,
	service TEXT UNIQUE NOT NULL,
	api_key TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	proposals INTEGER NOT NULL,
	body BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS batches_created_at ON batches(created_at);
`

// Store wraps a SQLite database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAPIKey inserts or replaces the key for a service.
func (s *Store) SaveAPIKey(ctx context.Context, service, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (service, api_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		service, key, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save api key %s: %w", service, err)
	}
	return nil
}

// APIKey returns the stored key for a service.
func (s *Store) APIKey(ctx context.Context, service string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT api_key FROM api_keys WHERE service = ?`, service).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load api key %s: %w", service, err)
	}
	return key, nil
}

// BatchInfo summarizes an archived batch.
type BatchInfo struct {
	ID        string    `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	Strategy  string    `json:"strategy"`
	Proposals int       `json:"proposals"`
	ReportURL string    `json:"report_url,omitempty"`
}

// SaveBatch archives a ranked batch. Saving the same ID again replaces it.
func (s *Store) SaveBatch(ctx context.Context, b *rank.Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", b.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, created_at, strategy, proposals, body) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at, strategy = excluded.strategy,
			proposals = excluded.proposals, body = excluded.body`,
		b.ID, b.CreatedAt.UnixMilli(), string(b.Strategy), len(b.Proposals), body)
	if err != nil {
		return fmt.Errorf("save batch %s: %w", b.ID, err)
	}
	return nil
}

// LoadBatch returns an archived batch.
func (s *Store) LoadBatch(ctx context.Context, id string) (*rank.Batch, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM batches WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", id, err)
	}
	var b rank.Batch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", id, err)
	}
	return &b, nil
}

// ListBatches returns the most recent batches, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, strategy, proposals FROM batches ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchInfo
	for rows.Next() {
		var info BatchInfo
		var ms int64
		if err := rows.Scan(&info.ID, &ms, &info.Strategy, &info.Proposals); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		info.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
