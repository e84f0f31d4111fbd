// internal/models/game.go
package models

import "time"

// GameState identifies where a game is in its round lifecycle.
type GameState string

// Game lifecycle states. A game loops TurnSetup -> PickingCards ->
// SelectingWinner -> TurnSetup until a stop condition moves it to Ended.
const (
	StateTurnSetup       GameState = "turnSetup"
	StatePickingCards    GameState = "pickingCards"
	StateSelectingWinner GameState = "selectingWinner"
	StateEnded           GameState = "ended"
)

// End reasons recorded on the game document when it transitions to Ended.
const (
	EndReasonTargetReached  = "target_reached"
	EndReasonCardsExhausted = "cards_exhausted"
	EndReasonDeckFailure    = "deck_resolution_failed"
	EndReasonNoPlayers      = "no_players"
	EndReasonRoomRemoved    = "room_removed"
)

// Player is a participant's per-game state. The hand holds white card ids
// only; card text is resolved when dealt to the client.
type Player struct {
	Score  int      `json:"score"`
	IsCzar bool     `json:"isCzar"`
	Hand   []string `json:"hand"`
}

// Turn describes the round currently in progress.
type Turn struct {
	Number int `json:"number"`
	// Czar is the judging player for the current round. While the game sits
	// in TurnSetup it still names the previous round's czar, which anchors
	// the rotation for the next round.
	Czar      string `json:"czar,omitempty"`
	BlackCard *Card  `json:"blackCard,omitempty"`
}

// TurnRecord is an append-only snapshot of a completed round.
type TurnRecord struct {
	Number    int    `json:"number"`
	Czar      string `json:"czar"`
	BlackCard Card   `json:"blackCard"`
	Winner    string `json:"winner"`
	// WinningCards are the winner's submitted cards, order preserved.
	WinningCards []Card `json:"winningCards"`
}

// Game is the authoritative document for one active match. It is mutated
// only through the orchestrator: every transition reads a snapshot, clones
// it, applies pure engine computation, and writes it back under a version
// guard. Nothing mutates a Game shared across callers in place.
type Game struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`

	Players map[string]*Player `json:"players"`
	// PlayerOrder preserves stable insertion order of the players map; czar
	// rotation walks this slice.
	PlayerOrder []string `json:"playerOrder"`

	State GameState `json:"state"`
	Turn  Turn      `json:"turn"`

	// SelectedCards maps player id to the card ids submitted this round.
	// Cleared at the start of each round. The czar never has an entry.
	SelectedCards map[string][]string `json:"selectedCards"`

	// Remaining undealt card ids, consumed without replacement.
	WhitePool []string `json:"whitePool"`
	BlackPool []string `json:"blackPool"`

	// Turns is the append-only history of completed rounds.
	Turns []TurnRecord `json:"turns"`

	RoundTimeSeconds int `json:"roundTimeSeconds"`
	ScoreTarget      int `json:"scoreTarget"`

	// Notice carries a round-outcome message ("no one selected any cards",
	// "the czar failed to pick a winner") to be delivered with the next
	// round-start notification, then cleared.
	Notice string `json:"notice,omitempty"`

	EndReason string   `json:"endReason,omitempty"`
	Winners   []string `json:"winners,omitempty"`

	// Version is the optimistic concurrency guard maintained by the store.
	// Writers must present the version they read; stale writers lose.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the game document. Orchestrator transitions
// always mutate a clone so concurrent readers never observe partial state.
func (g *Game) Clone() *Game {
	cp := *g

	cp.Players = make(map[string]*Player, len(g.Players))
	for id, p := range g.Players {
		pc := *p
		pc.Hand = append([]string(nil), p.Hand...)
		cp.Players[id] = &pc
	}
	cp.PlayerOrder = append([]string(nil), g.PlayerOrder...)

	cp.SelectedCards = make(map[string][]string, len(g.SelectedCards))
	for id, cards := range g.SelectedCards {
		cp.SelectedCards[id] = append([]string(nil), cards...)
	}

	cp.WhitePool = append([]string(nil), g.WhitePool...)
	cp.BlackPool = append([]string(nil), g.BlackPool...)

	cp.Turns = make([]TurnRecord, len(g.Turns))
	for i, tr := range g.Turns {
		trc := tr
		trc.WinningCards = append([]Card(nil), tr.WinningCards...)
		cp.Turns[i] = trc
	}

	if g.Turn.BlackCard != nil {
		bc := *g.Turn.BlackCard
		cp.Turn.BlackCard = &bc
	}
	cp.Winners = append([]string(nil), g.Winners...)

	return &cp
}

// Player returns the player entry for id, or nil if absent.
func (g *Game) Player(id string) *Player {
	return g.Players[id]
}

// HasPlayer reports whether id participates in the game.
func (g *Game) HasPlayer(id string) bool {
	_, ok := g.Players[id]
	return ok
}

// AddPlayer appends a fresh zero-score player, keeping PlayerOrder in sync.
// No-op if the player already exists.
func (g *Game) AddPlayer(id string) {
	if g.HasPlayer(id) {
		return
	}
	g.Players[id] = &Player{Hand: []string{}}
	g.PlayerOrder = append(g.PlayerOrder, id)
}

// RemovePlayer deletes a player and their pending submission, keeping
// PlayerOrder in sync. No-op if the player is absent.
func (g *Game) RemovePlayer(id string) {
	if !g.HasPlayer(id) {
		return
	}
	delete(g.Players, id)
	delete(g.SelectedCards, id)
	for i, pid := range g.PlayerOrder {
		if pid == id {
			g.PlayerOrder = append(g.PlayerOrder[:i], g.PlayerOrder[i+1:]...)
			break
		}
	}
}

// ClearCzar drops the czar flag from every player. Invariant: no player
// carries the flag while the game sits in TurnSetup or Ended.
func (g *Game) ClearCzar() {
	for _, p := range g.Players {
		p.IsCzar = false
	}
}
