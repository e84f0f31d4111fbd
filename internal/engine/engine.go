// internal/engine/engine.go

// Package engine holds the pure turn computations for a game: czar
// rotation, card draws and deals, submission validation, and winner
// resolution. Functions mutate the snapshot they are handed and return
// sentinel errors; they know nothing about timers, storage, or transport.
package engine

import (
	"math/rand"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// HandSize is the number of white cards every non-czar player is topped up
// to at the start of each round.
const HandSize = 10

// PickCzar rotates the czar role to the next player in stable insertion
// order. The previous round's czar is located in the *current* player set;
// if they left (or no round has been played yet) the rotation wraps to the
// first player. Exactly the new czar ends up with the IsCzar flag set.
func PickCzar(g *models.Game) string {
	next := 0
	if g.Turn.Czar != "" {
		for i, id := range g.PlayerOrder {
			if id == g.Turn.Czar {
				next = (i + 1) % len(g.PlayerOrder)
				break
			}
		}
	}
	czar := g.PlayerOrder[next]
	for id, p := range g.Players {
		p.IsCzar = id == czar
	}
	g.Turn.Czar = czar
	return czar
}

// DrawBlackCard removes one card id uniformly at random from the black
// pool and returns it. The caller resolves the id to a full Card and
// assigns it to the turn. Returns ErrCardsExhausted on an empty pool.
func DrawBlackCard(g *models.Game, rng *rand.Rand) (string, error) {
	if len(g.BlackPool) == 0 {
		return "", ErrCardsExhausted
	}
	id := drawOne(&g.BlackPool, rng)
	return id, nil
}

// DealHand tops up a player's hand to HandSize cards, drawing uniformly at
// random without replacement from the game's white pool. Running the pool
// dry before the hand is full is ErrCardsExhausted, which is fatal to
// continuing the game rather than a per-player condition.
func DealHand(g *models.Game, playerID string, rng *rand.Rand) error {
	p := g.Player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	for len(p.Hand) < HandSize {
		if len(g.WhitePool) == 0 {
			return ErrCardsExhausted
		}
		p.Hand = append(p.Hand, drawOne(&g.WhitePool, rng))
	}
	return nil
}

// HasEnoughCards reports whether another round can start safely: the total
// white-card top-up owed to non-czar players must be strictly less than
// the remaining white pool, and the black pool must be non-empty.
func HasEnoughCards(g *models.Game) bool {
	if len(g.BlackPool) == 0 {
		return false
	}
	needed := 0
	for id, p := range g.Players {
		if id == g.Turn.Czar {
			continue
		}
		needed += HandSize - len(p.Hand)
	}
	return needed < len(g.WhitePool)
}

// AcceptSubmission validates and records a player's cards for the current
// round, moving them out of the player's hand into the selected set.
func AcceptSubmission(g *models.Game, playerID string, cardIDs []string) error {
	if playerID == g.Turn.Czar {
		return ErrNotYourTurnToPlay
	}
	if _, done := g.SelectedCards[playerID]; done {
		return ErrAlreadySubmitted
	}
	if g.Turn.BlackCard == nil || len(cardIDs) != g.Turn.BlackCard.Pick {
		return ErrWrongCardCount
	}
	p := g.Player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	// Verify ownership before mutating anything. Duplicate ids in a single
	// submission would double-spend a hand slot, so they are rejected too.
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] || !contains(p.Hand, id) {
			return ErrCardNotInHand
		}
		seen[id] = true
	}
	for _, id := range cardIDs {
		p.Hand = removeID(p.Hand, id)
	}
	if g.SelectedCards == nil {
		g.SelectedCards = make(map[string][]string)
	}
	g.SelectedCards[playerID] = append([]string(nil), cardIDs...)
	return nil
}

// AllPlayersSubmitted reports whether every non-czar player has an entry in
// the selected set for this round.
func AllPlayersSubmitted(g *models.Game) bool {
	for id := range g.Players {
		if id == g.Turn.Czar {
			continue
		}
		if _, ok := g.SelectedCards[id]; !ok {
			return false
		}
	}
	return true
}

// ResolveWinner validates the czar's pick, awards the winner a point, and
// returns the winning submission's card ids in submission order.
func ResolveWinner(g *models.Game, czarID, winnerID string) ([]string, error) {
	if g.State != models.StateSelectingWinner {
		return nil, ErrWrongPhase
	}
	if czarID != g.Turn.Czar {
		return nil, ErrNotCzar
	}
	cards, ok := g.SelectedCards[winnerID]
	if !ok {
		return nil, ErrNoSuchSubmission
	}
	g.Players[winnerID].Score++
	return cards, nil
}

// TallyWinners returns the ids of every player holding the maximum score.
// Ties are included; plural winners are allowed.
func TallyWinners(g *models.Game) []string {
	max := -1
	for _, id := range g.PlayerOrder {
		if s := g.Players[id].Score; s > max {
			max = s
		}
	}
	var winners []string
	for _, id := range g.PlayerOrder {
		if g.Players[id].Score == max {
			winners = append(winners, id)
		}
	}
	return winners
}

// drawOne removes and returns a uniformly random element via swap-remove,
// keeping the shrinking pool compact.
func drawOne(pool *[]string, rng *rand.Rand) string {
	s := *pool
	i := rng.Intn(len(s))
	id := s[i]
	s[i] = s[len(s)-1]
	*pool = s[:len(s)-1]
	return id
}

func contains(s []string, id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(s []string, id string) []string {
	for i, v := range s {
		if v == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
