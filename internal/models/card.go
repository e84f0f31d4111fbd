// internal/models/card.go
package models

// CardType distinguishes prompt cards from response cards.
type CardType string

const (
	// CardTypeWhite is a response card submitted by non-czar players.
	CardTypeWhite CardType = "white"
	// CardTypeBlack is the round's prompt card.
	CardTypeBlack CardType = "black"
)

// Card is a single card from the deck catalog. Once drawn into a game the
// engine treats card ids as opaque tokens; full Card objects are only
// resolved when they need to be shown to clients.
type Card struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	CardType CardType `json:"cardType"`
	// Pick is how many white cards must be submitted against this card.
	// Meaningful for black cards only; always >= 1 there.
	Pick int `json:"pick,omitempty"`
}
