package resilience

import "time"

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in half-open
	// state before closing the circuit.
	// Default: 1
	SuccessThreshold int

	// OpenTimeout is how long to wait before transitioning from open to half-open.
	// Ignored when ManualReset is set.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxRequests is the max in-flight requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxRequests int

	// ManualReset keeps an open circuit open until Reset is called.
	ManualReset bool
}

// DefaultBreakerConfig returns the config used to gate the school API client.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// RetryPolicyConfig returns a breaker config that opens after threshold
// consecutive failures and stays open until Reset.
func RetryPolicyConfig(threshold int) BreakerConfig {
	return BreakerConfig{
		FailureThreshold: threshold,
		ManualReset:      true,
	}
}

// withDefaults fills zero values.
func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	return c
}
