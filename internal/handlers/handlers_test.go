// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heynatefox/cards-against-formality-services/internal/decks"
	"github.com/heynatefox/cards-against-formality-services/internal/game"
	"github.com/heynatefox/cards-against-formality-services/internal/models"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *game.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deck := make([]models.Card, 0, 46)
	for i := 0; i < 40; i++ {
		deck = append(deck, models.Card{
			ID: fmt.Sprintf("w%d", i), Text: fmt.Sprintf("white %d", i),
			CardType: models.CardTypeWhite,
		})
	}
	for i := 0; i < 6; i++ {
		deck = append(deck, models.Card{
			ID: fmt.Sprintf("b%d", i), Text: fmt.Sprintf("black %d", i),
			CardType: models.CardTypeBlack, Pick: 1,
		})
	}
	catalog := decks.NewStaticCatalog(map[string][]models.Card{"base": deck})

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	sched := game.NewScheduler()
	t.Cleanup(sched.StopAll)

	o := game.NewOrchestrator(store.NewMemoryStore(), catalog, sched, nil, nil, nil, log)
	o.Grace = time.Hour
	return NewRouter(o, log), o
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// createGame starts a default 3-player game and returns its id. Player A
// is the first czar.
func createGame(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/games", gin.H{
		"roomId":  "room-1",
		"players": []string{"A", "B", "C"},
		"decks":   []string{"base"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap game.TurnSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.GameID)
	return snap.GameID
}

// handOf fetches a player's current hand ids through the API.
func handOf(t *testing.T, r *gin.Engine, gameID, playerID string) []string {
	t.Helper()
	w := doJSON(t, r, http.MethodGet, "/games/"+gameID+"/players/"+playerID+"/hand", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Hand []models.Card `json:"hand"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	ids := make([]string, len(resp.Hand))
	for i, c := range resp.Hand {
		ids[i] = c.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateGame(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/games", gin.H{
		"roomId":  "room-1",
		"players": []string{"A", "B", "C"},
		"decks":   []string{"base"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap game.TurnSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, models.StatePickingCards, snap.State)
	assert.Equal(t, "A", snap.Czar)
	assert.Len(t, snap.Players, 3)
	for _, p := range snap.Players {
		assert.Equal(t, 10, p.HandSize)
	}
	assert.NotContains(t, w.Body.String(), `"hand":`, "snapshots must not leak hands")
}

func TestCreateGameValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/games", gin.H{"roomId": "room-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/games", gin.H{
		"roomId": "room-1", "players": []string{"A", "B"}, "decks": []string{"nope"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/games", gin.H{
		"roomId": "room-1", "players": []string{"A"}, "decks": []string{"base"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGameNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/games/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitStatuses(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createGame(t, r)

	czarHand := handOf(t, r, id, "A")
	w := doJSON(t, r, http.MethodPost, "/games/"+id+"/submit", gin.H{
		"playerId": "A", "cards": czarHand[:1],
	})
	assert.Equal(t, http.StatusForbidden, w.Code, "czar cannot submit")

	hand := handOf(t, r, id, "B")
	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/submit", gin.H{
		"playerId": "B", "cards": hand[:2],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "pick count mismatch")

	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/submit", gin.H{
		"playerId": "B", "cards": hand[:1],
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/submit", gin.H{
		"playerId": "B", "cards": hand[1:2],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "double submission")
}

func TestWinnerFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createGame(t, r)

	w := doJSON(t, r, http.MethodPost, "/games/"+id+"/winner", gin.H{
		"playerId": "A", "winnerId": "B",
	})
	assert.Equal(t, http.StatusConflict, w.Code, "no winner during submissions")

	for _, pid := range []string{"B", "C"} {
		hand := handOf(t, r, id, pid)
		w = doJSON(t, r, http.MethodPost, "/games/"+id+"/submit", gin.H{
			"playerId": pid, "cards": hand[:1],
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/winner", gin.H{
		"playerId": "B", "winnerId": "C",
	})
	assert.Equal(t, http.StatusForbidden, w.Code, "only the czar picks")

	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/winner", gin.H{
		"playerId": "A", "winnerId": "B",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/games/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap game.TurnSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, models.StateTurnSetup, snap.State)
	assert.Empty(t, snap.Czar, "no czar between rounds")
}

func TestPlayerEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createGame(t, r)

	w := doJSON(t, r, http.MethodPost, "/games/"+id+"/players", gin.H{"playerId": "D"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, handOf(t, r, id, "D"), 10, "late joiner is dealt up")

	w = doJSON(t, r, http.MethodPost, "/games/"+id+"/players", gin.H{"playerId": "D"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/games/"+id+"/players/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/games/"+id+"/players/D", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDestroyGame(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createGame(t, r)

	w := doJSON(t, r, http.MethodDelete, "/games/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/games/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
