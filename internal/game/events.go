// internal/game/events.go
package game

import (
	"context"

	"github.com/heynatefox/cards-against-formality-services/internal/models"
)

// GameEventType identifies a state-change notification published to clients.
type GameEventType string

const (
	// EventTurnUpdated carries the full round snapshot on every transition.
	EventTurnUpdated GameEventType = "games.turn.updated"
	// EventDeal privately delivers a single player's hand.
	EventDeal GameEventType = "games.deal"
	// EventUpdated is the legacy snapshot shape, superseded by
	// games.turn.updated but still published for older clients.
	EventUpdated GameEventType = "games.updated"
)

// PlayerView is a player's public entry in a turn snapshot. Hands never
// appear here; they travel only in per-player deal events.
type PlayerView struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	IsCzar    bool   `json:"isCzar"`
	HandSize  int    `json:"handSize"`
	Submitted bool   `json:"submitted"`
}

// Submission is a revealed player submission, published once the round has
// a winner.
type Submission struct {
	PlayerID string        `json:"playerId"`
	Cards    []models.Card `json:"cards"`
}

// TurnSnapshot is the full round state published on every transition.
type TurnSnapshot struct {
	GameID     string           `json:"gameId"`
	RoomID     string           `json:"roomId"`
	State      models.GameState `json:"state"`
	TurnNumber int              `json:"turnNumber"`
	Czar       string           `json:"czar,omitempty"`
	BlackCard  *models.Card     `json:"blackCard,omitempty"`
	Players    []PlayerView     `json:"players"`
	// Winner and WinningCards are set when a round just resolved.
	Winner       string        `json:"winner,omitempty"`
	WinningCards []models.Card `json:"winningCards,omitempty"`
	// Notice carries round-outcome messages ("no one selected any cards",
	// "the czar failed to pick a winner") with the next round start.
	Notice string `json:"notice,omitempty"`
	// GameWinners is set once the game has ended; ties included.
	GameWinners []string `json:"gameWinners,omitempty"`
	EndReason   string   `json:"endReason,omitempty"`
}

// Deal is a private hand delivery for one player.
type Deal struct {
	GameID   string        `json:"gameId"`
	PlayerID string        `json:"playerId"`
	Hand     []models.Card `json:"hand"`
	// BlackCard repeats the round prompt so clients can render the deal
	// without waiting for the snapshot.
	BlackCard *models.Card `json:"blackCard,omitempty"`
}

// Sink publishes state-change notifications for client consumption. The
// transport behind it (pub/sub fan-out, sockets) is out of scope here.
type Sink interface {
	PublishTurnUpdated(ctx context.Context, snap TurnSnapshot) error
	PublishDeal(ctx context.Context, deal Deal) error
	// PublishUpdated publishes the legacy games.updated shape.
	PublishUpdated(ctx context.Context, snap TurnSnapshot) error
}

// RoomUpdater notifies the owning room service of game status changes.
// Calls are best-effort: failures are logged and never block a local
// transition that already succeeded.
type RoomUpdater interface {
	UpdateRoomStatus(ctx context.Context, roomID, status string) error
}

// snapshotOf builds the public view of a game. Winner fields are filled by
// callers that just resolved a round.
func snapshotOf(g *models.Game) TurnSnapshot {
	snap := TurnSnapshot{
		GameID:      g.ID,
		RoomID:      g.RoomID,
		State:       g.State,
		TurnNumber:  g.Turn.Number,
		Czar:        g.Turn.Czar,
		BlackCard:   g.Turn.BlackCard,
		Notice:      g.Notice,
		GameWinners: g.Winners,
		EndReason:   g.EndReason,
	}
	if g.State == models.StateTurnSetup || g.State == models.StateEnded {
		// Czar only holds during active rounds; in TurnSetup it is just the
		// rotation anchor and must not leak as "current czar".
		snap.Czar = ""
	}
	for _, id := range g.PlayerOrder {
		p := g.Players[id]
		_, submitted := g.SelectedCards[id]
		snap.Players = append(snap.Players, PlayerView{
			ID:        id,
			Score:     p.Score,
			IsCzar:    p.IsCzar,
			HandSize:  len(p.Hand),
			Submitted: submitted,
		})
	}
	return snap
}
