// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heynatefox/cards-against-formality-services/internal/cache"
	"github.com/heynatefox/cards-against-formality-services/internal/config"
	"github.com/heynatefox/cards-against-formality-services/internal/decks"
	"github.com/heynatefox/cards-against-formality-services/internal/game"
	"github.com/heynatefox/cards-against-formality-services/internal/handlers"
	"github.com/heynatefox/cards-against-formality-services/internal/models"
	"github.com/heynatefox/cards-against-formality-services/internal/rooms"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(cfg.ParseLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		gameStore store.GameStore
		catalog   decks.Catalog
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("failed to ensure schema")
		}
		gameStore = pg
		catalog = decks.NewPostgresCatalog(pool)
		log.Info("using postgres game store")
	} else {
		gameStore = store.NewMemoryStore()
		catalog = decks.NewStaticCatalog(map[string][]models.Card{
			"base": decks.SampleDeck("base", 200),
		})
		log.Warn("POSTGRES_URL not set, using in-memory store and sample deck")
	}

	var (
		sink    game.Sink
		history game.History
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable at startup, continuing")
		}
		pub := cache.NewPublisher(rdb, log)
		sink = pub
		history = pub
		log.Info("publishing events to redis")
	} else {
		log.Warn("REDIS_URL not set, events will not be published")
	}

	var roomClient game.RoomUpdater
	if cfg.RoomServiceURL != "" {
		roomClient = rooms.NewClient(cfg.RoomServiceURL, log)
	}

	sched := game.NewScheduler()
	defer sched.StopAll()

	orch := game.NewOrchestrator(gameStore, catalog, sched, sink, roomClient, history, log)
	orch.Grace = time.Duration(cfg.GraceDelaySeconds) * time.Second
	orch.RoundTimeDefault = cfg.RoundTimeSeconds
	orch.ScoreTargetDefault = cfg.ScoreTarget

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.NewRouter(orch, log),
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
