package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS decisions (
	key TEXT PRIMARY KEY,
	column_idx INT NOT NULL,
	scores JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e   Entry
		raw []byte
	)
	err := p.pool.QueryRow(ctx, `SELECT column_idx, scores FROM decisions WHERE key = $1`, key).Scan(&e.Column, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal(raw, &e.Scores); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (p *PostgresStore) Put(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e.Scores)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO decisions (key, column_idx, scores)
VALUES ($1,$2,$3) ON CONFLICT (key) DO NOTHING`, key, e.Column, raw)
	return err
}
