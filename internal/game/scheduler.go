// internal/game/scheduler.go
package game

import (
	"sync"
	"time"
)

// Scheduler keeps at most one outstanding timer per game id. Arming a new
// timer cancels and replaces any existing one for that id, which is the
// only cancellation primitive the orchestrator needs. A fired timer does
// not carry a captured game snapshot: handlers re-read the store and act
// only if the state they expect still holds.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn to run after d, replacing any timer already pending for
// the game id. fn receives only the id; it must re-fetch current state.
func (s *Scheduler) Arm(gameID string, d time.Duration, fn func(gameID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		// Only clear the map entry if it still points at this timer; a
		// re-arm may already have replaced it.
		if s.timers[gameID] == timer {
			delete(s.timers, gameID)
		}
		s.mu.Unlock()
		fn(gameID)
	})
	s.timers[gameID] = timer
}

// Cancel stops and forgets any pending timer for the game id.
func (s *Scheduler) Cancel(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
		delete(s.timers, gameID)
	}
}

// StopAll cancels every pending timer. Used on shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
