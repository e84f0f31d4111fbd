// internal/game/rounds.go
package game

import (
	"context"
	"errors"
	"time"

	"github.com/heynatefox/cards-against-formality-services/internal/engine"
	"github.com/heynatefox/cards-against-formality-services/internal/models"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

// startRound is the TurnSetup entry point: it either ends the game (score
// target reached, cards exhausted) or rotates the czar, draws the black
// card, deals everyone up, and opens the submission window. Invoked
// synchronously on game creation and by the grace timer between rounds.
// Safe against stale triggers: it no-ops unless the game still sits in
// TurnSetup, and its write is version-guarded.
func (o *Orchestrator) startRound(ctx context.Context, gameID string) {
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Debug("round start skipped, game unavailable")
		return
	}
	if g.State != models.StateTurnSetup {
		o.logger(gameID).WithField("state", g.State).Debug("stale round start ignored")
		return
	}

	// The notice describes the previous round's outcome; it rides along
	// with this round-start notification and is then dropped.
	notice := g.Notice
	g.Notice = ""

	for _, id := range g.PlayerOrder {
		if g.Players[id].Score >= g.ScoreTarget {
			o.finishGame(g, models.EndReasonTargetReached)
			if err := o.persistRound(ctx, g); err != nil {
				return
			}
			o.afterFinish(ctx, gameID, notice)
			return
		}
	}

	czar := engine.PickCzar(g)
	if !engine.HasEnoughCards(g) {
		o.finishGame(g, models.EndReasonCardsExhausted)
		if err := o.persistRound(ctx, g); err != nil {
			return
		}
		o.afterFinish(ctx, gameID, notice)
		return
	}

	rng := o.newRand()
	blackID, err := engine.DrawBlackCard(g, rng)
	if err != nil {
		// HasEnoughCards guarantees a non-empty pool; treat defensively
		// identical to exhaustion anyway.
		o.finishGame(g, models.EndReasonCardsExhausted)
		if err := o.persistRound(ctx, g); err != nil {
			return
		}
		o.afterFinish(ctx, gameID, notice)
		return
	}
	blackCards, err := o.catalog.ResolveCards(ctx, []string{blackID})
	if err != nil || len(blackCards) != 1 {
		o.logger(gameID).WithError(err).Error("black card resolution failed, ending game")
		o.finishGame(g, models.EndReasonDeckFailure)
		if err := o.persistRound(ctx, g); err != nil {
			return
		}
		o.afterFinish(ctx, gameID, notice)
		return
	}

	g.Turn.Number++
	g.Turn.BlackCard = &blackCards[0]
	g.SelectedCards = make(map[string][]string)
	for _, id := range g.PlayerOrder {
		if err := engine.DealHand(g, id, rng); err != nil {
			o.finishGame(g, models.EndReasonCardsExhausted)
			if err := o.persistRound(ctx, g); err != nil {
				return
			}
			o.afterFinish(ctx, gameID, notice)
			return
		}
	}
	g.State = models.StatePickingCards

	if err := o.persistRound(ctx, g); err != nil {
		return
	}

	o.logger(gameID).WithFields(map[string]interface{}{
		"turn": g.Turn.Number, "czar": czar,
	}).Info("round started")
	o.sched.Arm(gameID, time.Duration(g.RoundTimeSeconds)*time.Second, o.onRoundTimeout)
	o.recordAction(gameID, "", "round.started", map[string]interface{}{
		"turn": g.Turn.Number, "czar": czar,
	})

	for _, id := range g.PlayerOrder {
		o.publishDealFor(ctx, g, id)
	}
	o.publishSnapshot(ctx, gameID, func(snap *TurnSnapshot) {
		snap.Notice = notice
	})
}

// onGraceElapsed fires after the between-rounds grace delay.
func (o *Orchestrator) onGraceElapsed(gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	o.startRound(ctx, gameID)
}

// onRoundTimeout fires when the submission window closes. With no
// submissions at all the round is discarded ("everyone loses"); otherwise
// judging begins with whatever arrived in time.
func (o *Orchestrator) onRoundTimeout(gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Debug("round timeout skipped, game unavailable")
		return
	}
	if g.State != models.StatePickingCards {
		o.logger(gameID).WithField("state", g.State).Debug("stale round timeout ignored")
		return
	}

	if len(g.SelectedCards) == 0 {
		o.logger(gameID).WithField("turn", g.Turn.Number).Info("round timed out with no submissions")
		g.Notice = "no one selected any cards this round, everyone loses"
		o.discardRound(g)
		if err := o.persistRound(ctx, g); err != nil {
			return
		}
		o.sched.Arm(gameID, o.Grace, o.onGraceElapsed)
		o.recordAction(gameID, "", "round.no_submissions", map[string]interface{}{"turn": len(g.Turns)})
		o.publishSnapshot(ctx, gameID, nil)
		return
	}

	g.State = models.StateSelectingWinner
	if err := o.persistRound(ctx, g); err != nil {
		return
	}
	o.logger(gameID).WithField("turn", g.Turn.Number).Info("round timed out, judging begins")
	o.sched.Arm(gameID, time.Duration(g.RoundTimeSeconds)*time.Second, o.onJudgingTimeout)
	o.recordAction(gameID, "", "round.timed_out", map[string]interface{}{"turn": g.Turn.Number})
	o.publishSnapshot(ctx, gameID, nil)
}

// onJudgingTimeout fires when the czar fails to pick a winner in time.
// The round is discarded with no winner and the next round is scheduled.
func (o *Orchestrator) onJudgingTimeout(gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Debug("judging timeout skipped, game unavailable")
		return
	}
	if g.State != models.StateSelectingWinner {
		o.logger(gameID).WithField("state", g.State).Debug("stale judging timeout ignored")
		return
	}

	o.logger(gameID).WithField("turn", g.Turn.Number).Info("czar failed to pick a winner")
	g.Notice = "the czar failed to pick a winner, no one wins this round"
	o.discardRound(g)
	if err := o.persistRound(ctx, g); err != nil {
		return
	}
	o.sched.Arm(gameID, o.Grace, o.onGraceElapsed)
	o.recordAction(gameID, "", "round.czar_timeout", map[string]interface{}{"turn": len(g.Turns)})
	o.publishSnapshot(ctx, gameID, nil)
}

// persistRound writes g under its version guard. A conflict means another
// trigger already advanced the game; the caller's transition is dropped.
func (o *Orchestrator) persistRound(ctx context.Context, g *models.Game) error {
	g.UpdatedAt = time.Now().UTC()
	err := o.store.Update(ctx, g, g.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		o.logger(g.ID).Debug("transition lost the write race, dropping")
		return err
	}
	if err != nil {
		o.logger(g.ID).WithError(err).Error("failed to persist transition")
	}
	return err
}

// closeRound returns the game to TurnSetup after a resolved round. The
// czar id stays on the turn as the rotation anchor; the flags are cleared
// so no player holds the czar role outside an active round.
func (o *Orchestrator) closeRound(g *models.Game) {
	g.State = models.StateTurnSetup
	g.ClearCzar()
	g.Turn.BlackCard = nil
	g.SelectedCards = make(map[string][]string)
}

// discardRound records a no-winner round in the history (audit keeps the
// black card accounted for) and returns the game to TurnSetup.
func (o *Orchestrator) discardRound(g *models.Game) {
	if g.Turn.BlackCard != nil {
		g.Turns = append(g.Turns, models.TurnRecord{
			Number:    g.Turn.Number,
			Czar:      g.Turn.Czar,
			BlackCard: *g.Turn.BlackCard,
		})
	}
	o.closeRound(g)
}

// finishGame marks the game Ended with the given reason and tallies the
// winners. Mutates only; callers persist and publish.
func (o *Orchestrator) finishGame(g *models.Game, reason string) {
	g.State = models.StateEnded
	g.EndReason = reason
	g.ClearCzar()
	g.Turn.BlackCard = nil
	g.SelectedCards = make(map[string][]string)
	if len(g.Players) > 0 {
		g.Winners = engine.TallyWinners(g)
	}
}

// afterFinish runs the side effects of a game ending: cancel any pending
// timer, notify clients and the room service.
func (o *Orchestrator) afterFinish(ctx context.Context, gameID, notice string) {
	o.sched.Cancel(gameID)
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Warn("finished game vanished before notification")
		return
	}
	o.logger(gameID).WithFields(map[string]interface{}{
		"reason": g.EndReason, "winners": g.Winners,
	}).Info("game ended")
	o.recordAction(gameID, "", "game.ended", map[string]interface{}{
		"reason": g.EndReason, "winners": g.Winners,
	})
	o.publishSnapshot(ctx, gameID, func(snap *TurnSnapshot) {
		snap.Notice = notice
	})
	o.updateRoom(ctx, g.RoomID, RoomStatusFinished)
}

// publishSnapshot publishes the current turn snapshot (and the legacy
// shape) to the notification sink. mutate lets callers attach
// transition-specific fields like the round winner.
func (o *Orchestrator) publishSnapshot(ctx context.Context, gameID string, mutate func(*TurnSnapshot)) {
	if o.sink == nil {
		o.logger(gameID).Warn("no notification sink configured, snapshot dropped")
		return
	}
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Debug("snapshot skipped, game unavailable")
		return
	}
	snap := snapshotOf(g)
	if mutate != nil {
		mutate(&snap)
	}
	if err := o.sink.PublishTurnUpdated(ctx, snap); err != nil {
		o.logger(gameID).WithError(err).Warn("failed to publish turn snapshot")
	}
	if err := o.sink.PublishUpdated(ctx, snap); err != nil {
		o.logger(gameID).WithError(err).Warn("failed to publish legacy snapshot")
	}
}

// publishDeal re-reads the game and delivers one player's hand.
func (o *Orchestrator) publishDeal(ctx context.Context, gameID, playerID string) {
	g, err := o.store.Get(ctx, gameID)
	if err != nil {
		o.logger(gameID).WithError(err).Debug("deal skipped, game unavailable")
		return
	}
	o.publishDealFor(ctx, g, playerID)
}

// publishDealFor resolves a player's hand to full cards and delivers it
// privately. Hands never ride on public snapshots.
func (o *Orchestrator) publishDealFor(ctx context.Context, g *models.Game, playerID string) {
	if o.sink == nil {
		return
	}
	p := g.Player(playerID)
	if p == nil {
		return
	}
	hand, err := o.catalog.ResolveCards(ctx, p.Hand)
	if err != nil {
		o.logger(g.ID).WithError(err).WithField("player_id", playerID).Warn("failed to resolve hand for deal")
		return
	}
	deal := Deal{
		GameID:    g.ID,
		PlayerID:  playerID,
		Hand:      hand,
		BlackCard: g.Turn.BlackCard,
	}
	if err := o.sink.PublishDeal(ctx, deal); err != nil {
		o.logger(g.ID).WithError(err).WithField("player_id", playerID).Warn("failed to publish deal")
	}
}
