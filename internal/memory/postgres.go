package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS utterances (
    id          BIGSERIAL PRIMARY KEY,
    text        TEXT        NOT NULL,
    observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS utterances_observed_at_idx ON utterances (observed_at DESC);
`

// PostgresStore is the PostgreSQL-backed Store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the database at dsn,
// verifies connectivity, and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveUtterance implements [Store].
func (s *PostgresStore) SaveUtterance(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO utterances (text) VALUES ($1)`, text); err != nil {
		return fmt.Errorf("memory: save utterance: %w", err)
	}
	return nil
}

// Retrieve implements [Store]. Matching is keyword ILIKE over the utterance
// text, newest first; prompts without usable keywords retrieve nothing.
func (s *PostgresStore) Retrieve(ctx context.Context, prompt string, limit int) ([]Utterance, error) {
	keywords := Keywords(prompt)
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	for i, kw := range keywords {
		conds = append(conds, fmt.Sprintf("text ILIKE $%d", i+1))
		args = append(args, "%"+kw+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT text, observed_at FROM utterances WHERE %s ORDER BY observed_at DESC LIMIT $%d`,
		strings.Join(conds, " OR "), len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: retrieve: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		if err := rows.Scan(&u.Text, &u.ObservedAt); err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: rows: %w", err)
	}
	return out, nil
}

// Close implements [Store].
func (s *PostgresStore) Close() {
	s.pool.Close()
}
