// internal/game/orchestrator_test.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heynatefox/cards-against-formality-services/internal/decks"
	"github.com/heynatefox/cards-against-formality-services/internal/engine"
	"github.com/heynatefox/cards-against-formality-services/internal/models"
	"github.com/heynatefox/cards-against-formality-services/internal/store"
)

// mockSink captures published notifications for assertions.
type mockSink struct {
	mu        sync.Mutex
	snapshots []TurnSnapshot
	deals     []Deal
	legacy    int
}

func (m *mockSink) PublishTurnUpdated(ctx context.Context, snap TurnSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *mockSink) PublishDeal(ctx context.Context, deal Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = append(m.deals, deal)
	return nil
}

func (m *mockSink) PublishUpdated(ctx context.Context, snap TurnSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy++
	return nil
}

func (m *mockSink) lastSnapshot() *TurnSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil
	}
	snap := m.snapshots[len(m.snapshots)-1]
	return &snap
}

func (m *mockSink) dealsFor(playerID string) []Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Deal
	for _, d := range m.deals {
		if d.PlayerID == playerID {
			out = append(out, d)
		}
	}
	return out
}

// mockRooms records room status updates.
type mockRooms struct {
	mu       sync.Mutex
	statuses []string
}

func (m *mockRooms) UpdateRoomStatus(ctx context.Context, roomID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockRooms) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

// testDeck builds a pick-1 deck with the given card counts.
func testDeck(whites, blacks int) []models.Card {
	var cards []models.Card
	for i := 0; i < whites; i++ {
		cards = append(cards, models.Card{
			ID: fmt.Sprintf("w%d", i), Text: fmt.Sprintf("white %d", i),
			CardType: models.CardTypeWhite,
		})
	}
	for i := 0; i < blacks; i++ {
		cards = append(cards, models.Card{
			ID: fmt.Sprintf("b%d", i), Text: fmt.Sprintf("black %d", i),
			CardType: models.CardTypeBlack, Pick: 1,
		})
	}
	return cards
}

type testRig struct {
	orch  *Orchestrator
	store store.GameStore
	sink  *mockSink
	rooms *mockRooms
	game  string
}

// newTestRig creates a game with inert (hour-long) timers so tests drive
// every transition explicitly.
func newTestRig(t *testing.T, playerIDs []string, deck []models.Card, opts Options) *testRig {
	t.Helper()
	return newTestRigWithStore(t, store.NewMemoryStore(), playerIDs, deck, opts)
}

func newTestRigWithStore(t *testing.T, st store.GameStore, playerIDs []string, deck []models.Card, opts Options) *testRig {
	t.Helper()

	catalog := decks.NewStaticCatalog(map[string][]models.Card{"base": deck})
	sink := &mockSink{}
	rooms := &mockRooms{}
	sched := NewScheduler()
	t.Cleanup(sched.StopAll)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	o := NewOrchestrator(st, catalog, sched, sink, rooms, nil, log)
	o.Grace = time.Hour
	o.newRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }

	if opts.RoundTimeSeconds == 0 {
		opts.RoundTimeSeconds = 3600
	}
	g, err := o.CreateGame(context.Background(), "room-1", playerIDs, []string{"base"}, opts)
	require.NoError(t, err)

	return &testRig{orch: o, store: st, sink: sink, rooms: rooms, game: g.ID}
}

func (r *testRig) mustGet(t *testing.T) *models.Game {
	t.Helper()
	g, err := r.store.Get(context.Background(), r.game)
	require.NoError(t, err)
	return g
}

// submit plays the first n cards of the player's current hand.
func (r *testRig) submit(t *testing.T, playerID string, n int) error {
	t.Helper()
	g := r.mustGet(t)
	hand := g.Players[playerID].Hand
	require.GreaterOrEqual(t, len(hand), n)
	return r.orch.SubmitCards(context.Background(), r.game, playerID, hand[:n])
}

// TestScriptedGame replays the canonical 3-player, target-1 match: the
// czar is A, B and C submit, A picks B, and the next round setup detects
// the reached target and ends the game with B as sole winner.
func TestScriptedGame(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{ScoreTarget: 1})
	ctx := context.Background()

	g := rig.mustGet(t)
	assert.Equal(t, models.StatePickingCards, g.State)
	assert.Equal(t, "A", g.Turn.Czar)
	assert.Equal(t, 1, g.Turn.Number)
	assert.Equal(t, "started", rig.rooms.last())
	for _, id := range []string{"A", "B", "C"} {
		assert.Len(t, g.Players[id].Hand, engine.HandSize)
		assert.Len(t, rig.sink.dealsFor(id), 1)
	}

	require.NoError(t, rig.submit(t, "B", 1))
	g = rig.mustGet(t)
	assert.Equal(t, models.StatePickingCards, g.State, "one submission outstanding")

	require.NoError(t, rig.submit(t, "C", 1))
	g = rig.mustGet(t)
	assert.Equal(t, models.StateSelectingWinner, g.State)

	require.NoError(t, rig.orch.SelectWinner(ctx, rig.game, "A", "B"))
	g = rig.mustGet(t)
	assert.Equal(t, models.StateTurnSetup, g.State)
	assert.Equal(t, 1, g.Players["B"].Score)
	require.Len(t, g.Turns, 1)
	assert.Equal(t, "B", g.Turns[0].Winner)
	snap := rig.sink.lastSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "B", snap.Winner)

	// The grace timer is inert in tests; enter TurnSetup by hand.
	rig.orch.startRound(ctx, rig.game)
	g = rig.mustGet(t)
	assert.Equal(t, models.StateEnded, g.State)
	assert.Equal(t, models.EndReasonTargetReached, g.EndReason)
	assert.Equal(t, []string{"B"}, g.Winners)
	assert.Equal(t, "finished", rig.rooms.last())
}

// TestSubmissionValidation surfaces engine rejections unchanged and
// leaves state untouched.
func TestSubmissionValidation(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{})
	ctx := context.Background()

	g := rig.mustGet(t)
	czarHand := g.Players["A"].Hand

	err := rig.orch.SubmitCards(ctx, rig.game, "A", czarHand[:1])
	assert.ErrorIs(t, err, engine.ErrNotYourTurnToPlay)

	err = rig.submit(t, "B", 2)
	assert.ErrorIs(t, err, engine.ErrWrongCardCount)

	require.NoError(t, rig.submit(t, "B", 1))
	err = rig.submit(t, "B", 1)
	assert.ErrorIs(t, err, engine.ErrAlreadySubmitted)

	err = rig.orch.SubmitCards(ctx, rig.game, "ghost", []string{"w0"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	err = rig.orch.SelectWinner(ctx, rig.game, "A", "B")
	assert.ErrorIs(t, err, engine.ErrWrongPhase)
}

// TestCzarLeavesMidRound: the round is discarded with no winner and the
// rotation wraps to the first remaining player next round.
func TestCzarLeavesMidRound(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{})
	ctx := context.Background()

	require.NoError(t, rig.submit(t, "B", 1))
	require.NoError(t, rig.orch.RemovePlayer(ctx, rig.game, "A"))

	g := rig.mustGet(t)
	assert.Equal(t, models.StateTurnSetup, g.State)
	assert.False(t, g.HasPlayer("A"))
	require.Len(t, g.Turns, 1)
	assert.Empty(t, g.Turns[0].Winner, "discarded round has no winner")
	for _, p := range g.Players {
		assert.Zero(t, p.Score)
		assert.False(t, p.IsCzar)
	}

	rig.orch.startRound(ctx, rig.game)
	g = rig.mustGet(t)
	assert.Equal(t, models.StatePickingCards, g.State)
	assert.Equal(t, "B", g.Turn.Czar, "rotation wraps to first remaining player")
	assert.Equal(t, 2, g.Turn.Number)
}

// TestRoundTimeoutNoSubmissions: everyone loses, the round is discarded,
// and the notice rides along with the next round start.
func TestRoundTimeoutNoSubmissions(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B"}, testDeck(40, 6), Options{})
	ctx := context.Background()

	rig.orch.onRoundTimeout(rig.game)
	g := rig.mustGet(t)
	assert.Equal(t, models.StateTurnSetup, g.State)
	assert.NotEmpty(t, g.Notice)

	rig.orch.startRound(ctx, rig.game)
	snap := rig.sink.lastSnapshot()
	require.NotNil(t, snap)
	assert.Contains(t, snap.Notice, "no one selected any cards")
	assert.Empty(t, rig.mustGet(t).Notice, "notice is consumed by the round start")
}

// TestRoundTimeoutWithSubmissions advances to judging instead.
func TestRoundTimeoutWithSubmissions(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{})

	require.NoError(t, rig.submit(t, "B", 1))
	rig.orch.onRoundTimeout(rig.game)

	g := rig.mustGet(t)
	assert.Equal(t, models.StateSelectingWinner, g.State)
}

// TestJudgingTimeout: the czar failing to pick discards the round.
func TestJudgingTimeout(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{})

	require.NoError(t, rig.submit(t, "B", 1))
	require.NoError(t, rig.submit(t, "C", 1))
	require.Equal(t, models.StateSelectingWinner, rig.mustGet(t).State)

	rig.orch.onJudgingTimeout(rig.game)
	g := rig.mustGet(t)
	assert.Equal(t, models.StateTurnSetup, g.State)
	assert.Contains(t, g.Notice, "czar failed to pick")
	for _, p := range g.Players {
		assert.Zero(t, p.Score, "no winner on judging timeout")
	}
}

// TestStaleTimerIsNoOp: a round timer firing after the game already
// advanced must change nothing.
func TestStaleTimerIsNoOp(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(40, 6), Options{})

	require.NoError(t, rig.submit(t, "B", 1))
	require.NoError(t, rig.submit(t, "C", 1))
	before := rig.mustGet(t)
	require.Equal(t, models.StateSelectingWinner, before.State)

	rig.orch.onRoundTimeout(rig.game)
	after := rig.mustGet(t)
	assert.Equal(t, models.StateSelectingWinner, after.State)
	assert.Equal(t, before.Version, after.Version, "stale trigger must not write")

	// Same for a judging timer firing after the round resolved.
	require.NoError(t, rig.orch.SelectWinner(context.Background(), rig.game, "A", "B"))
	before = rig.mustGet(t)
	rig.orch.onJudgingTimeout(rig.game)
	after = rig.mustGet(t)
	assert.Equal(t, before.Version, after.Version)
}

// TestBlackPoolExhaustion: no black card for the next round ends the game
// before any partial round starts.
func TestBlackPoolExhaustion(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(60, 1), Options{})
	ctx := context.Background()

	require.NoError(t, rig.submit(t, "B", 1))
	require.NoError(t, rig.submit(t, "C", 1))
	require.NoError(t, rig.orch.SelectWinner(ctx, rig.game, "A", "B"))

	rig.orch.startRound(ctx, rig.game)
	g := rig.mustGet(t)
	assert.Equal(t, models.StateEnded, g.State)
	assert.Equal(t, models.EndReasonCardsExhausted, g.EndReason)
	assert.Equal(t, []string{"B"}, g.Winners, "max-score players still tallied")
}

// TestCardConservation: white cards stay accounted for across pool,
// hands, and submissions; black cards across pool, current turn, and
// history.
func TestCardConservation(t *testing.T) {
	const whites, blacks = 40, 6
	rig := newTestRig(t, []string{"A", "B", "C"}, testDeck(whites, blacks), Options{})
	ctx := context.Background()

	countWhites := func(g *models.Game) int {
		n := len(g.WhitePool)
		for _, p := range g.Players {
			n += len(p.Hand)
		}
		for _, cards := range g.SelectedCards {
			n += len(cards)
		}
		return n
	}
	countBlacks := func(g *models.Game) int {
		n := len(g.BlackPool)
		if g.Turn.BlackCard != nil {
			n++
		}
		return n + len(g.Turns)
	}

	g := rig.mustGet(t)
	assert.Equal(t, whites, countWhites(g))
	assert.Equal(t, blacks, countBlacks(g))

	require.NoError(t, rig.submit(t, "B", 1))
	require.NoError(t, rig.submit(t, "C", 1))
	g = rig.mustGet(t)
	assert.Equal(t, whites, countWhites(g))

	require.NoError(t, rig.orch.SelectWinner(ctx, rig.game, "A", "B"))
	rig.orch.startRound(ctx, rig.game)
	g = rig.mustGet(t)
	assert.Equal(t, blacks, countBlacks(g))
}

// TestJoinMidGame: a late joiner gets a catch-up hand and a private deal.
func TestJoinMidGame(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B"}, testDeck(40, 6), Options{})
	ctx := context.Background()

	require.NoError(t, rig.orch.AddPlayer(ctx, rig.game, "D"))
	g := rig.mustGet(t)
	assert.Len(t, g.Players["D"].Hand, engine.HandSize)
	assert.Zero(t, g.Players["D"].Score)
	assert.Len(t, rig.sink.dealsFor("D"), 1)

	err := rig.orch.AddPlayer(ctx, rig.game, "D")
	assert.ErrorIs(t, err, ErrPlayerExists)
}

// TestLastPlayerLeavingDestroysGame.
func TestLastPlayerLeavingDestroysGame(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B"}, testDeck(40, 6), Options{})
	ctx := context.Background()

	require.NoError(t, rig.orch.RemovePlayer(ctx, rig.game, "B"))
	require.NoError(t, rig.orch.RemovePlayer(ctx, rig.game, "A"))

	_, err := rig.store.Get(ctx, rig.game)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "finished", rig.rooms.last())
}

// conflictOnceStore forces a single version conflict to exercise the
// orchestrator's read-retry path.
type conflictOnceStore struct {
	store.GameStore
	mu      sync.Mutex
	tripped bool
}

func (c *conflictOnceStore) Update(ctx context.Context, g *models.Game, expect int64) error {
	c.mu.Lock()
	trip := !c.tripped
	c.tripped = true
	c.mu.Unlock()
	if trip {
		return store.ErrVersionConflict
	}
	return c.GameStore.Update(ctx, g, expect)
}

func TestActionRetriesOnceOnConflict(t *testing.T) {
	inner := store.NewMemoryStore()
	rig := newTestRigWithStore(t, inner, []string{"A", "B", "C"}, testDeck(40, 6), Options{})

	// Swap in the tripwire after setup so creation is unaffected.
	rig.orch.store = &conflictOnceStore{GameStore: inner}
	require.NoError(t, rig.submit(t, "B", 1))

	g := rig.mustGet(t)
	assert.Contains(t, g.SelectedCards, "B", "retried submission must land")
}

// TestTimeoutsDriveRounds runs real timers end to end: an empty round
// times out, the grace delay elapses, and a fresh round begins.
func TestTimeoutsDriveRounds(t *testing.T) {
	rig := newTestRig(t, []string{"A", "B"}, testDeck(60, 6), Options{RoundTimeSeconds: 1})
	rig.orch.Grace = 100 * time.Millisecond

	// Re-arm the already-pending round timer under the short settings.
	rig.orch.sched.Arm(rig.game, time.Second, rig.orch.onRoundTimeout)

	require.Eventually(t, func() bool {
		g, err := rig.store.Get(context.Background(), rig.game)
		return err == nil && g.State == models.StatePickingCards && g.Turn.Number == 2
	}, 5*time.Second, 50*time.Millisecond, "timeout and grace should drive the game into round 2")
}
