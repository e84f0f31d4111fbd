// internal/cache/cache.go

// Package cache publishes game notifications and action history through
// Redis. Gateways subscribe to the per-game channels and fan events out to
// connected clients; the historian list keeps an append-only action trail.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heynatefox/cards-against-formality-services/internal/game"
)

// Key layout. Deals go to a player-scoped channel so hands never cross a
// public subscription.
const (
	gameChannelFmt = "games.events.%s"
	dealChannelFmt = "games.deal.%s.%s"
	historyKeyFmt  = "games:history:%s"

	historyTTL = 24 * time.Hour
)

// Event is the envelope published on game channels.
type Event struct {
	Type    game.GameEventType `json:"type"`
	GameID  string             `json:"gameId"`
	Payload interface{}        `json:"payload"`
}

// Publisher implements game.Sink and game.History over a Redis client.
// A nil client is tolerated: every operation becomes a no-op so the
// service runs without Redis in dev.
type Publisher struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewPublisher(rdb *redis.Client, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.New()
	}
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) PublishTurnUpdated(ctx context.Context, snap game.TurnSnapshot) error {
	return p.publish(ctx, snap.GameID, game.EventTurnUpdated, snap)
}

// PublishUpdated mirrors the turn snapshot on the legacy event type for
// clients that still listen on it.
func (p *Publisher) PublishUpdated(ctx context.Context, snap game.TurnSnapshot) error {
	return p.publish(ctx, snap.GameID, game.EventUpdated, snap)
}

func (p *Publisher) PublishDeal(ctx context.Context, deal game.Deal) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	body, err := json.Marshal(Event{Type: game.EventDeal, GameID: deal.GameID, Payload: deal})
	if err != nil {
		return fmt.Errorf("marshal deal: %w", err)
	}
	channel := fmt.Sprintf(dealChannelFmt, deal.GameID, deal.PlayerID)
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish deal: %w", err)
	}
	return nil
}

// AppendAction pushes an action record onto the per-game history list and
// refreshes its TTL.
func (p *Publisher) AppendAction(ctx context.Context, rec game.ActionRecord) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	key := fmt.Sprintf(historyKeyFmt, rec.GameID)
	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, key, body)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, gameID string, typ game.GameEventType, payload interface{}) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	body, err := json.Marshal(Event{Type: typ, GameID: gameID, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	channel := fmt.Sprintf(gameChannelFmt, gameID)
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}
