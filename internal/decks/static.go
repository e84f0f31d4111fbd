// internal/decks/static.go
package decks

import (
	"context"
	"fmt"
	"sort"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// StaticCatalog serves decks from an in-memory map. It backs tests and
// standalone dev runs where no card database is configured.
type StaticCatalog struct {
	decks map[string][]models.Card
	cards map[string]models.Card
}

// NewStaticCatalog indexes the given decks by id.
func NewStaticCatalog(decksByID map[string][]models.Card) *StaticCatalog {
	c := &StaticCatalog{
		decks: decksByID,
		cards: make(map[string]models.Card),
	}
	for _, cards := range decksByID {
		for _, card := range cards {
			c.cards[card.ID] = card
		}
	}
	return c
}

func (c *StaticCatalog) ResolveDecks(ctx context.Context, deckIDs []string) ([]string, []string, error) {
	var white, black []string
	for _, id := range deckIDs {
		cards, ok := c.decks[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown deck %q", ErrDeckResolution, id)
		}
		for _, card := range cards {
			switch card.CardType {
			case models.CardTypeWhite:
				white = append(white, card.ID)
			case models.CardTypeBlack:
				black = append(black, card.ID)
			}
		}
	}
	return white, black, nil
}

func (c *StaticCatalog) ResolveCards(ctx context.Context, cardIDs []string) ([]models.Card, error) {
	out := make([]models.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		card, ok := c.cards[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown card %q", ErrDeckResolution, id)
		}
		out = append(out, card)
	}
	return out, nil
}

// SampleDeck builds a generated deck big enough for local play: n white
// cards and a handful of black cards with varying pick counts.
func SampleDeck(id string, n int) []models.Card {
	var cards []models.Card
	for i := 0; i < n; i++ {
		cards = append(cards, models.Card{
			ID:       fmt.Sprintf("%s-w%d", id, i),
			Text:     fmt.Sprintf("White card %d.", i),
			CardType: models.CardTypeWhite,
		})
	}
	picks := []int{1, 1, 1, 2, 1, 1, 2, 1, 3, 1}
	for i, pick := range picks {
		cards = append(cards, models.Card{
			ID:       fmt.Sprintf("%s-b%d", id, i),
			Text:     fmt.Sprintf("Black card %d: ____.", i),
			CardType: models.CardTypeBlack,
			Pick:     pick,
		})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards
}
