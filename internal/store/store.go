// internal/store/store.go

// Package store owns the authoritative Game document. All writes are
// guarded by an optimistic version check so that concurrent triggers
// (player actions, timer fires, other service instances) can never
// double-apply a transition: stale writers observe ErrVersionConflict.
package store

import (
	"context"
	"errors"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

var (
	// ErrNotFound is returned when no game document exists for the id.
	ErrNotFound = errors.New("game not found")
	// ErrVersionConflict is returned when the caller's expected version no
	// longer matches the persisted document: another transition won.
	ErrVersionConflict = errors.New("game version conflict")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("game already exists")
)

// GameStore reads and writes Game documents. Get returns a snapshot whose
// Version field must be presented back on Update; implementations replace
// the document atomically only when the versions still match.
type GameStore interface {
	Get(ctx context.Context, id string) (*models.Game, error)
	Create(ctx context.Context, g *models.Game) error
	// Update persists g only if the stored version equals expect, bumping
	// the version on success (and reflecting the new version on g).
	Update(ctx context.Context, g *models.Game, expect int64) error
	Delete(ctx context.Context, id string) error
}
