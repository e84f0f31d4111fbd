// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// PostgresStore persists each Game as a JSONB document with a version
// column. The compare-and-swap lives in the UPDATE's WHERE clause, so the
// guard holds across service instances, not just within one process.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the games table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure games schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Game, error) {
	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT doc, version FROM games WHERE id = $1`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	var g models.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	g.Version = version
	return &g, nil
}

func (s *PostgresStore) Create(ctx context.Context, g *models.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO games (id, doc, version, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (id) DO NOTHING`,
		g.ID, doc, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create game %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	g.Version = 1
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, g *models.Game, expect int64) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE games SET doc = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4`,
		g.ID, doc, time.Now().UTC(), expect)
	if err != nil {
		return fmt.Errorf("update game %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished game from a lost race.
		if _, getErr := s.Get(ctx, g.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	g.Version = expect + 1
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete game %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
