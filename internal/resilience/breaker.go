package resilience

import "time"

// Breaker implements the circuit breaker pattern over a Store.
// With a MemoryStore it is a per-instance retry policy; with a FileStore
// its state is shared by every process using the same directory.
type Breaker struct {
	config BreakerConfig
	store  Store
	now    func() time.Time
}

// NewBreaker creates a breaker. Zero config values take defaults.
func NewBreaker(store Store, config BreakerConfig) *Breaker {
	return &Breaker{
		config: config.withDefaults(),
		store:  store,
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (b *Breaker) Config() BreakerConfig { return b.config }

// Allow reports whether a request may proceed. In half-open state it
// reserves a probe slot, which RecordSuccess or RecordFailure releases.
// Store errors fail open.
func (b *Breaker) Allow() (bool, error) {
	state, err := b.store.Load()
	if err != nil {
		return true, nil //nolint:nilerr // fail open: a broken store must not block requests
	}
	if state.IsClosed() {
		return true, nil
	}
	if state.IsOpen() && !b.openExpired(state, b.now()) {
		return false, nil
	}

	var allowed bool
	err = b.store.Update(func(s *BreakerState) error {
		now := b.now()
		switch {
		case s.IsClosed():
			allowed = true
		case s.IsOpen():
			if !b.openExpired(*s, now) {
				return nil
			}
			s.State = CircuitHalfOpen
			s.Successes = 0
			s.HalfOpenAttempts = 1
			s.UpdatedAt = now
			allowed = true
		case s.IsHalfOpen():
			if s.HalfOpenAttempts >= b.config.HalfOpenMaxRequests {
				return nil
			}
			s.HalfOpenAttempts++
			s.UpdatedAt = now
			allowed = true
		}
		return nil
	})
	if err != nil {
		return true, nil //nolint:nilerr // fail open
	}
	return allowed, nil
}

func (b *Breaker) openExpired(s BreakerState, now time.Time) bool {
	if b.config.ManualReset {
		return false
	}
	return now.Sub(s.OpenedAt) >= b.config.OpenTimeout
}

// RecordSuccess records a successful request.
func (b *Breaker) RecordSuccess() error {
	return b.store.Update(func(s *BreakerState) error {
		switch {
		case s.IsHalfOpen():
			if s.HalfOpenAttempts > 0 {
				s.HalfOpenAttempts--
			}
			s.Successes++
			if s.Successes >= b.config.SuccessThreshold {
				*s = NewBreakerState()
			}
		default:
			s.Failures = 0
		}
		s.UpdatedAt = b.now()
		return nil
	})
}

// RecordFailure records a failed request. It returns true when this
// failure opened the circuit.
func (b *Breaker) RecordFailure() (opened bool, err error) {
	err = b.store.Update(func(s *BreakerState) error {
		now := b.now()
		s.LastFailureAt = now
		s.UpdatedAt = now

		switch {
		case s.IsClosed():
			s.State = CircuitClosed
			s.Failures++
			if s.Failures >= b.config.FailureThreshold {
				s.State = CircuitOpen
				s.OpenedAt = now
				opened = true
			}
		case s.IsHalfOpen():
			s.State = CircuitOpen
			s.OpenedAt = now
			s.Successes = 0
			s.HalfOpenAttempts = 0
			opened = true
		default:
			s.Failures++
		}
		return nil
	})
	return opened, err
}

// State returns the current circuit state, reporting half_open for an open
// circuit whose timeout has elapsed.
func (b *Breaker) State() (string, error) {
	s, err := b.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	if s.IsOpen() && b.openExpired(s, b.now()) {
		return CircuitHalfOpen, nil
	}
	if s.State == "" {
		return CircuitClosed, nil
	}
	return s.State, nil
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	s, err := b.store.Load()
	if err != nil {
		return 0
	}
	return s.Failures
}

// Reset closes the circuit and clears all counters.
func (b *Breaker) Reset() error {
	return b.store.Update(func(s *BreakerState) error {
		*s = NewBreakerState()
		s.UpdatedAt = b.now()
		return nil
	})
}
