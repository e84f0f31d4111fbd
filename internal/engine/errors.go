// internal/engine/errors.go
package engine

import "errors"

// Validation errors are rejected synchronously to the caller; no state is
// mutated when one is returned.
var (
	ErrNotYourTurnToPlay = errors.New("the czar does not play cards this round")
	ErrAlreadySubmitted  = errors.New("cards already submitted this round")
	ErrWrongCardCount    = errors.New("submission does not match the black card's pick count")
	ErrCardNotInHand     = errors.New("submitted card is not in the player's hand")
	ErrNotCzar           = errors.New("only the czar selects the winner")
	ErrWrongPhase        = errors.New("action not valid in the current game state")
	ErrNoSuchSubmission  = errors.New("no submission recorded for that player")
	ErrUnknownPlayer     = errors.New("player is not in the game")
)

// ErrCardsExhausted is fatal to the game: there are not enough cards left
// in the pools to continue another round.
var ErrCardsExhausted = errors.New("card pools exhausted")
