package resilience

import "time"

// StateVersion is the current persisted schema version.
const StateVersion = 1

// Circuit breaker state constants.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// BreakerState is the persisted state of one circuit breaker.
//   - closed: requests flow through, consecutive failures are counted
//   - open: requests fail fast
//   - half_open: a limited number of probe requests are let through
type BreakerState struct {
	Version int    `json:"version"`
	State   string `json:"state"`

	// Failures is the count of consecutive failures.
	Failures int `json:"failures"`

	// Successes is the count of consecutive successes in half_open.
	Successes int `json:"successes"`

	// HalfOpenAttempts tracks in-flight probes in half_open.
	HalfOpenAttempts int `json:"half_open_attempts,omitempty"`

	LastFailureAt time.Time `json:"last_failure_at"`
	OpenedAt      time.Time `json:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewBreakerState returns a closed breaker state.
func NewBreakerState() BreakerState {
	return BreakerState{Version: StateVersion, State: CircuitClosed}
}

// IsClosed returns true if the circuit is in closed (normal) state.
func (s *BreakerState) IsClosed() bool {
	return s.State == "" || s.State == CircuitClosed
}

// IsOpen returns true if the circuit is open (failing fast).
func (s *BreakerState) IsOpen() bool {
	return s.State == CircuitOpen
}

// IsHalfOpen returns true if the circuit is probing.
func (s *BreakerState) IsHalfOpen() bool {
	return s.State == CircuitHalfOpen
}
