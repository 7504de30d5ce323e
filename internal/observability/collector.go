package observability

import (
	"context"
	"sync"
	"time"
)

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime      time.Time
	EndTime        time.Time
	TotalRequests  int
	FailedRequests int
	TotalRetries   int
	TotalLatency   time.Duration
	Fetches        int
	FetchFailures  int
	Discarded      int
	CircuitsOpened int
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime      time.Time
	totalRequests  int
	failedRequests int
	totalRetries   int
	totalLatency   time.Duration
	fetches        int
	fetchFailures  int
	discarded      int
	circuitsOpened int
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{startTime: time.Now()}
}

func (c *SessionCollector) FetchStarted(FetchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
}

func (c *SessionCollector) FetchSucceeded(FetchEvent) {}

func (c *SessionCollector) FetchFailed(FetchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchFailures++
}

func (c *SessionCollector) FetchDiscarded(FetchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded++
}

func (c *SessionCollector) CircuitOpened(FetchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.circuitsOpened++
}

func (c *SessionCollector) OnRequestStart(_ context.Context, _ RequestInfo) {}

// OnRequestEnd records metrics for an HTTP request.
func (c *SessionCollector) OnRequestEnd(_ context.Context, _ RequestInfo, result RequestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += result.Duration
	if result.Error != nil {
		c.failedRequests++
	}
}

// OnRetry records a retry event.
func (c *SessionCollector) OnRetry(_ context.Context, _ RequestInfo, _ int, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:      c.startTime,
		EndTime:        time.Now(),
		TotalRequests:  c.totalRequests,
		FailedRequests: c.failedRequests,
		TotalRetries:   c.totalRetries,
		TotalLatency:   c.totalLatency,
		Fetches:        c.fetches,
		FetchFailures:  c.fetchFailures,
		Discarded:      c.discarded,
		CircuitsOpened: c.circuitsOpened,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.totalRequests = 0
	c.failedRequests = 0
	c.totalRetries = 0
	c.totalLatency = 0
	c.fetches = 0
	c.fetchFailures = 0
	c.discarded = 0
	c.circuitsOpened = 0
}
