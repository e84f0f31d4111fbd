// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// MemoryStore is a mutex-guarded in-process GameStore. It backs tests and
// single-instance dev runs; the version guard behaves identically to the
// Postgres implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*models.Game
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]*models.Game)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Hand out a copy so callers can never mutate the stored document.
	return g.Clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, g *models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return ErrAlreadyExists
	}
	g.Version = 1
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, g *models.Game, expect int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[g.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expect {
		return ErrVersionConflict
	}
	g.Version = expect + 1
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return ErrNotFound
	}
	delete(m.games, id)
	return nil
}
