// internal/game/history.go
package game

import "context"

// ActionRecord is one entry in a game's append-only action history,
// consumed by the historian for audit and replay.
type ActionRecord struct {
	GameID     string                 `json:"gameId"`
	ActorID    string                 `json:"actorId,omitempty"`
	ActionType string                 `json:"actionType"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// History records game actions. Appends are best-effort and asynchronous;
// a failing historian never blocks a transition.
type History interface {
	AppendAction(ctx context.Context, rec ActionRecord) error
}
