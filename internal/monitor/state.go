package monitor

import (
	"sync"
	"time"

	"inkbatt/internal/model"
)

// State is the loop's memory across cycles. The poll goroutine is the
// only writer; the mutex exists for the status surface, which reads
// snapshots from other goroutines.
type State struct {
	mu                  sync.Mutex
	lastReading         *model.SensorReading
	lastSuccessAt       time.Time
	consecutiveFailures int
}

func (s *State) recordSuccess(r *model.SensorReading, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReading = r
	s.lastSuccessAt = now
	s.consecutiveFailures = 0
}

// recordFailure bumps the failure counter and returns the new count.
// The last reading is deliberately left in place so the display keeps
// showing the best data available.
func (s *State) recordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures++
	return s.consecutiveFailures
}

func (s *State) failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}

// Snapshot freezes the state into an immutable view taken at now.
func (s *State) Snapshot(now time.Time) model.DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.DisplayState{
		Reading:             s.lastReading,
		ConsecutiveFailures: s.consecutiveFailures,
		At:                  now,
	}
	if !s.lastSuccessAt.IsZero() {
		t := s.lastSuccessAt
		st.LastSuccessAt = &t
	}
	return st
}
