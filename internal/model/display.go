package model

import "time"

// DisplayState is the per-cycle snapshot handed to render sinks.
// Reading stays nil until the first successful fetch and is never
// cleared by later failures.
type DisplayState struct {
	Reading             *SensorReading `json:"reading"`
	LastSuccessAt       *time.Time     `json:"last_success_at"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	At                  time.Time      `json:"at"`
}

// HasData reports whether at least one fetch has ever succeeded.
func (s DisplayState) HasData() bool {
	return s.Reading != nil
}

// Stale reports whether the reading on display is older than the last
// poll cycle, i.e. the most recent cycle failed.
func (s DisplayState) Stale() bool {
	return s.Reading != nil && s.ConsecutiveFailures > 0
}

// Age returns how long ago the last successful fetch happened, measured
// at the snapshot time. Zero when no fetch has succeeded yet.
func (s DisplayState) Age() time.Duration {
	if s.LastSuccessAt == nil {
		return 0
	}
	return s.At.Sub(*s.LastSuccessAt)
}
