// internal/decks/postgres.go
package decks

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// PostgresCatalog resolves decks and cards from the shared card database.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog wraps an existing connection pool.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

func (c *PostgresCatalog) ResolveDecks(ctx context.Context, deckIDs []string) ([]string, []string, error) {
	// Unknown deck ids are an error, not an empty pool.
	var known int
	err := c.pool.QueryRow(ctx,
		`SELECT count(*) FROM decks WHERE id = ANY($1)`, deckIDs).Scan(&known)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
	}
	if known != len(deckIDs) {
		return nil, nil, fmt.Errorf("%w: %d of %d decks unknown", ErrDeckResolution, len(deckIDs)-known, len(deckIDs))
	}

	rows, err := c.pool.Query(ctx,
		`SELECT id, card_type FROM cards WHERE deck_id = ANY($1)`, deckIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
	}
	defer rows.Close()

	var white, black []string
	for rows.Next() {
		var id string
		var cardType models.CardType
		if err := rows.Scan(&id, &cardType); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
		}
		switch cardType {
		case models.CardTypeWhite:
			white = append(white, id)
		case models.CardTypeBlack:
			black = append(black, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
	}
	return white, black, nil
}

func (c *PostgresCatalog) ResolveCards(ctx context.Context, cardIDs []string) ([]models.Card, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, text, card_type, pick FROM cards WHERE id = ANY($1)`, cardIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
	}
	defer rows.Close()

	byID := make(map[string]models.Card, len(cardIDs))
	for rows.Next() {
		var card models.Card
		if err := rows.Scan(&card.ID, &card.Text, &card.CardType, &card.Pick); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
		}
		byID[card.ID] = card
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeckResolution, err)
	}

	// Preserve the caller's order; a missing id is an error.
	out := make([]models.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		card, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown card %q", ErrDeckResolution, id)
		}
		out = append(out, card)
	}
	return out, nil
}
