package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps decisions in a local file, for single-node deployments
// without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite takes one writer at a time.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.EnsureTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) EnsureTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS decisions (
	key TEXT PRIMARY KEY,
	column_idx INTEGER NOT NULL,
	scores TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e   Entry
		raw string
	)
	err := s.db.QueryRowContext(ctx, `SELECT column_idx, scores FROM decisions WHERE key = ?`, key).Scan(&e.Column, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &e.Scores); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e.Scores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO decisions (key, column_idx, scores) VALUES (?, ?, ?)`, key, e.Column, string(raw))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
