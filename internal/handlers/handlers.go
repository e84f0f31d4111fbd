// internal/handlers/handlers.go

// Package handlers exposes the game orchestrator over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heynatefox/cards-against-formality-services/internal/decks"
	"github.com/heynatefox/cards-against-formality-services/internal/engine"
	"github.com/heynatefox/cards-against-formality-services/internal/game"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

// NewRouter builds the HTTP API around the orchestrator.
func NewRouter(o *game.Orchestrator, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/games", CreateGameHandler(o))
	r.GET("/games/:id", GetGameHandler(o))
	r.DELETE("/games/:id", DestroyGameHandler(o))

	r.POST("/games/:id/submit", SubmitCardsHandler(o))
	r.POST("/games/:id/winner", SelectWinnerHandler(o))

	r.POST("/games/:id/players", AddPlayerHandler(o))
	r.DELETE("/games/:id/players/:playerId", RemovePlayerHandler(o))
	r.GET("/games/:id/players/:playerId/hand", HandHandler(o))

	return r
}

func CreateGameHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID           string   `json:"roomId"`
			Players          []string `json:"players"`
			Decks            []string `json:"decks"`
			RoundTimeSeconds int      `json:"roundTimeSeconds"`
			ScoreTarget      int      `json:"scoreTarget"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if len(req.Players) == 0 || len(req.Decks) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "players and decks required"})
			return
		}
		g, err := o.CreateGame(c.Request.Context(), req.RoomID, req.Players, req.Decks, game.Options{
			RoundTimeSeconds: req.RoundTimeSeconds,
			ScoreTarget:      req.ScoreTarget,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		snap, err := o.Snapshot(c.Request.Context(), g.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, snap)
	}
}

func GetGameHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := o.Snapshot(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func DestroyGameHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := o.DestroyGame(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func SubmitCardsHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID string   `json:"playerId"`
			Cards    []string `json:"cards"`
		}
		if err := c.BindJSON(&req); err != nil || req.PlayerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playerId and cards required"})
			return
		}
		if err := o.SubmitCards(c.Request.Context(), c.Param("id"), req.PlayerID, req.Cards); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"submitted": true})
	}
}

func SelectWinnerHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID string `json:"playerId"`
			WinnerID string `json:"winnerId"`
		}
		if err := c.BindJSON(&req); err != nil || req.PlayerID == "" || req.WinnerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playerId and winnerId required"})
			return
		}
		if err := o.SelectWinner(c.Request.Context(), c.Param("id"), req.PlayerID, req.WinnerID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"winner": req.WinnerID})
	}
}

func AddPlayerHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID string `json:"playerId"`
		}
		if err := c.BindJSON(&req); err != nil || req.PlayerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playerId required"})
			return
		}
		if err := o.AddPlayer(c.Request.Context(), c.Param("id"), req.PlayerID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"joined": true})
	}
}

func RemovePlayerHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := o.RemovePlayer(c.Request.Context(), c.Param("id"), c.Param("playerId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func HandHandler(o *game.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		hand, err := o.Hand(c.Request.Context(), c.Param("id"), c.Param("playerId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"hand": hand})
	}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, engine.ErrUnknownPlayer):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNotCzar),
		errors.Is(err, engine.ErrNotYourTurnToPlay):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, game.ErrPlayerExists):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrAlreadySubmitted),
		errors.Is(err, engine.ErrWrongCardCount),
		errors.Is(err, engine.ErrCardNotInHand),
		errors.Is(err, engine.ErrNoSuchSubmission),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, decks.ErrDeckResolution):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
