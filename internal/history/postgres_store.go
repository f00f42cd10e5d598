package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a native pgx/v5 pool-backed Store, an alternative
// to SQLStore's database/sql path for deployments that already run a
// pgxpool.Pool for everything else.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool and ensures run_history
// exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_history (
			id         SERIAL PRIMARY KEY,
			source     TEXT NOT NULL,
			selector   TEXT NOT NULL,
			success    BOOLEAN NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			output     TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("creating run_history table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Record(ctx context.Context, rec RunRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO run_history (source, selector, success, error, output, created_at)
		VALUES ($1, $2, $3, $4, $5, now()) RETURNING id
	`, rec.Source, rec.Selector, rec.Success, rec.Error, rec.Output).Scan(&id)
	return id, err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, selector, success, error, output, created_at
		FROM run_history ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Selector, &rec.Success, &rec.Error, &rec.Output, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
