// internal/decks/decks.go

// Package decks resolves deck identifiers to card pools and card ids back
// to full cards. Deck resolution failures are fatal to game start.
package decks

import (
	"context"
	"errors"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// ErrDeckResolution is returned when a deck id is unknown or the card
// catalog is unreachable. Callers treat it as fatal to starting a game.
var ErrDeckResolution = errors.New("failed to resolve decks")

// Catalog is the external card/deck service boundary.
type Catalog interface {
	// ResolveDecks concatenates all card ids belonging to the given decks,
	// split into white and black pools.
	ResolveDecks(ctx context.Context, deckIDs []string) (white, black []string, err error)
	// ResolveCards looks up full cards for the given ids, order preserved.
	ResolveCards(ctx context.Context, cardIDs []string) ([]models.Card, error)
}
