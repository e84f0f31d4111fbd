// internal/game/orchestrator.go

// Package game drives the lifecycle state machine for a match: it composes
// the pure turn engine, the guarded game store, and the timeout scheduler,
// and is the only component that decides when a game transitions and what
// happens on failure. Every action is a short sequence of read, pure
// computation, and version-guarded write; triggers that lose the write
// race (or fire against an outdated state) are no-ops.
package game

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/heynatefox/cards-against-formality-services/internal/decks"
	"github.com/heynatefox/cards-against-formality-services/internal/engine"
	"github.com/heynatefox/cards-against-formality-services/internal/models"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

// Defaults applied when a room starts a game without explicit options.
const (
	DefaultRoundTimeSeconds = 60
	DefaultScoreTarget      = 10
	DefaultGraceDelay       = 10 * time.Second

	// fireTimeout bounds the work done by a single timer fire.
	fireTimeout = 10 * time.Second
)

// Room status values reported back to the room service.
const (
	RoomStatusStarted  = "started"
	RoomStatusFinished = "finished"
)

var (
	// ErrNotEnoughPlayers rejects starting a game with fewer than 2 players.
	ErrNotEnoughPlayers = errors.New("a game needs at least 2 players")
	// ErrPlayerExists rejects adding a player who is already in the game.
	ErrPlayerExists = errors.New("player already in game")
	// ErrPlayerNotFound rejects actions naming a player not in the game.
	ErrPlayerNotFound = errors.New("player not in game")
)

// Options configures a new game.
type Options struct {
	RoundTimeSeconds int
	ScoreTarget      int
}

// Orchestrator is the state machine driver. It holds no per-game state of
// its own: the store is the single source of truth, and any service
// instance may handle any trigger for any game.
type Orchestrator struct {
	store   store.GameStore
	catalog decks.Catalog
	sched   *Scheduler
	sink    Sink
	rooms   RoomUpdater
	history History
	log     *logrus.Logger

	// Grace is the fixed pause after a round concludes before the next
	// round begins, letting clients render the result.
	Grace time.Duration

	// RoundTimeDefault and ScoreTargetDefault fill in create requests that
	// omit the options.
	RoundTimeDefault   int
	ScoreTargetDefault int

	// newRand is swapped for a seeded source in tests.
	newRand func() *rand.Rand
}

// NewOrchestrator wires the collaborators together. sink, rooms, and
// history may be nil; the orchestrator degrades to warnings.
func NewOrchestrator(st store.GameStore, catalog decks.Catalog, sched *Scheduler, sink Sink, rooms RoomUpdater, history History, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		store:              st,
		catalog:            catalog,
		sched:              sched,
		sink:               sink,
		rooms:              rooms,
		history:            history,
		log:                log,
		Grace:              DefaultGraceDelay,
		RoundTimeDefault:   DefaultRoundTimeSeconds,
		ScoreTargetDefault: DefaultScoreTarget,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// CreateGame resolves the deck pools, initializes the player set in the
// given order, persists the new game, and starts the first round.
func (o *Orchestrator) CreateGame(ctx context.Context, roomID string, playerIDs, deckIDs []string, opts Options) (*models.Game, error) {
	if len(playerIDs) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	white, black, err := o.catalog.ResolveDecks(ctx, deckIDs)
	if err != nil {
		return nil, err
	}

	if opts.RoundTimeSeconds <= 0 {
		opts.RoundTimeSeconds = o.RoundTimeDefault
	}
	if opts.ScoreTarget <= 0 {
		opts.ScoreTarget = o.ScoreTargetDefault
	}

	now := time.Now().UTC()
	g := &models.Game{
		ID:               uuid.NewString(),
		RoomID:           roomID,
		Players:          make(map[string]*models.Player),
		SelectedCards:    make(map[string][]string),
		State:            models.StateTurnSetup,
		WhitePool:        white,
		BlackPool:        black,
		RoundTimeSeconds: opts.RoundTimeSeconds,
		ScoreTarget:      opts.ScoreTarget,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, id := range playerIDs {
		g.AddPlayer(id)
	}

	if err := o.store.Create(ctx, g); err != nil {
		return nil, err
	}
	o.logger(g.ID).WithField("room_id", roomID).Info("game created")
	o.recordAction(g.ID, "", "game.created", map[string]interface{}{
		"players": playerIDs, "decks": deckIDs,
	})
	o.updateRoom(ctx, roomID, RoomStatusStarted)

	o.startRound(ctx, g.ID)
	return o.store.Get(ctx, g.ID)
}

// Get returns the current game snapshot.
func (o *Orchestrator) Get(ctx context.Context, gameID string) (*models.Game, error) {
	return o.store.Get(ctx, gameID)
}

// Snapshot returns the public view of a game. Hands stay private.
func (o *Orchestrator) Snapshot(ctx context.Context, gameID string) (TurnSnapshot, error) {
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		return TurnSnapshot{}, err
	}
	return snapshotOf(g), nil
}

// Hand returns one player's resolved hand, for gateways answering a
// reconnecting client before the next deal event.
func (o *Orchestrator) Hand(ctx context.Context, gameID, playerID string) ([]models.Card, error) {
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.Player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	return o.catalog.ResolveCards(ctx, p.Hand)
}

// SubmitCards records a player's submission for the current round. When
// the last outstanding submission arrives the game advances to winner
// selection and the judging timer replaces the round timer.
func (o *Orchestrator) SubmitCards(ctx context.Context, gameID, playerID string, cardIDs []string) error {
	var advanced bool
	var roundSecs int
	err := o.apply(ctx, gameID, func(g *models.Game) error {
		if g.State != models.StatePickingCards {
			return engine.ErrWrongPhase
		}
		if !g.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		if err := engine.AcceptSubmission(g, playerID, cardIDs); err != nil {
			return err
		}
		advanced = engine.AllPlayersSubmitted(g)
		if advanced {
			g.State = models.StateSelectingWinner
		}
		roundSecs = g.RoundTimeSeconds
		return nil
	})
	if err != nil {
		return err
	}

	if advanced {
		// Replaces the pending round timer with the judging timer.
		o.sched.Arm(gameID, time.Duration(roundSecs)*time.Second, o.onJudgingTimeout)
	}
	o.recordAction(gameID, playerID, "games.submit", map[string]interface{}{"cards": cardIDs})
	o.publishSnapshot(ctx, gameID, nil)
	return nil
}

// SelectWinner applies the czar's pick: awards the point, appends the
// completed round to history, and schedules the next round after the
// grace delay.
func (o *Orchestrator) SelectWinner(ctx context.Context, gameID, playerID, winnerID string) error {
	var winningCards []models.Card
	err := o.apply(ctx, gameID, func(g *models.Game) error {
		cardIDs, err := engine.ResolveWinner(g, playerID, winnerID)
		if err != nil {
			return err
		}
		cards, err := o.catalog.ResolveCards(ctx, cardIDs)
		if err != nil {
			// The ids came out of our own pools; failure here is the card
			// service being unreachable, which cannot invalidate the pick.
			o.logger(gameID).WithError(err).Warn("failed to resolve winning cards")
			cards = nil
		}
		winningCards = cards

		g.Turns = append(g.Turns, models.TurnRecord{
			Number:       g.Turn.Number,
			Czar:         g.Turn.Czar,
			BlackCard:    *g.Turn.BlackCard,
			Winner:       winnerID,
			WinningCards: cards,
		})
		o.closeRound(g)
		return nil
	})
	if err != nil {
		return err
	}

	o.sched.Arm(gameID, o.Grace, o.onGraceElapsed)
	o.recordAction(gameID, playerID, "games.winner", map[string]interface{}{"winner": winnerID})
	o.publishSnapshot(ctx, gameID, func(snap *TurnSnapshot) {
		snap.Winner = winnerID
		snap.WinningCards = winningCards
	})
	return nil
}

// AddPlayer admits a player mid-game with a fresh score and, during an
// active round, a catch-up hand.
func (o *Orchestrator) AddPlayer(ctx context.Context, gameID, playerID string) error {
	var fatal error
	err := o.apply(ctx, gameID, func(g *models.Game) error {
		if g.HasPlayer(playerID) {
			return ErrPlayerExists
		}
		g.AddPlayer(playerID)
		if g.State == models.StatePickingCards || g.State == models.StateSelectingWinner {
			if err := engine.DealHand(g, playerID, o.newRand()); err != nil {
				// Pool ran dry mid-deal: fatal to the game, not the join.
				fatal = err
				o.finishGame(g, models.EndReasonCardsExhausted)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if fatal != nil {
		o.afterFinish(ctx, gameID, "")
		return nil
	}
	o.recordAction(gameID, playerID, "player.joined", nil)
	o.publishDeal(ctx, gameID, playerID)
	o.publishSnapshot(ctx, gameID, nil)
	return nil
}

// RemovePlayer drops a player from the game. A departing czar forces an
// immediate no-winner transition; an empty game is destroyed.
func (o *Orchestrator) RemovePlayer(ctx context.Context, gameID, playerID string) error {
	var czarLeft, emptied bool
	err := o.apply(ctx, gameID, func(g *models.Game) error {
		if !g.HasPlayer(playerID) {
			return ErrPlayerNotFound
		}
		czarLeft = g.Turn.Czar == playerID &&
			(g.State == models.StatePickingCards || g.State == models.StateSelectingWinner)
		g.RemovePlayer(playerID)

		emptied = len(g.Players) == 0
		if emptied {
			return nil
		}
		if czarLeft {
			// Round cannot be judged; discard it and rotate on.
			g.Notice = "the czar left the game, no winner this round"
			o.discardRound(g)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.recordAction(gameID, playerID, "player.left", nil)
	if emptied {
		return o.DestroyGame(ctx, gameID)
	}
	if czarLeft {
		o.sched.Arm(gameID, o.Grace, o.onGraceElapsed)
	}
	o.publishSnapshot(ctx, gameID, nil)
	return nil
}

// DestroyGame removes the game entirely: pending timers are cancelled and
// the document deleted. Used when the owning room is destroyed or the last
// player leaves.
func (o *Orchestrator) DestroyGame(ctx context.Context, gameID string) error {
	o.sched.Cancel(gameID)
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if err := o.store.Delete(ctx, gameID); err != nil {
		return err
	}
	o.logger(gameID).Info("game destroyed")
	o.recordAction(gameID, "", "game.destroyed", nil)
	o.updateRoom(ctx, g.RoomID, RoomStatusFinished)
	return nil
}

// apply runs a read-compute-write cycle under the version guard, retrying
// once when a concurrent transition wins the race. Validation errors from
// fn abort without writing.
func (o *Orchestrator) apply(ctx context.Context, gameID string, fn func(*models.Game) error) error {
	for attempt := 0; ; attempt++ {
		g, err := o.store.Get(ctx, gameID)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		g.UpdatedAt = time.Now().UTC()
		err = o.store.Update(ctx, g, g.Version)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt == 0 {
			o.logger(gameID).Debug("write conflict, retrying action against fresh state")
			continue
		}
		return err
	}
}

func (o *Orchestrator) logger(gameID string) *logrus.Entry {
	return o.log.WithField("game_id", gameID)
}

// recordAction appends to the historian asynchronously; failures are
// logged and dropped.
func (o *Orchestrator) recordAction(gameID, actorID, actionType string, payload map[string]interface{}) {
	if o.history == nil {
		return
	}
	rec := ActionRecord{
		GameID:     gameID,
		ActorID:    actorID,
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.history.AppendAction(ctx, rec); err != nil {
			o.logger(gameID).WithError(err).Warnf("failed to record action %s", actionType)
		}
	}()
}

// updateRoom is a best-effort notification to the room service; failure
// never blocks the transition that already succeeded.
func (o *Orchestrator) updateRoom(ctx context.Context, roomID, status string) {
	if o.rooms == nil || roomID == "" {
		return
	}
	if err := o.rooms.UpdateRoomStatus(ctx, roomID, status); err != nil {
		o.log.WithField("room_id", roomID).WithError(err).Warnf("failed to update room status to %s", status)
	}
}
