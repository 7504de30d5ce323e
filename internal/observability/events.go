// Package observability provides metrics collection, tracing and logging for
// resource hooks and school API requests.
package observability

import (
	"context"
	"time"
)

// FetchEvent describes one resource hook fetch attempt.
type FetchEvent struct {
	Key      string // hook key, e.g. "students"
	Params   string // serialized params
	Seq      uint64
	Manual   bool
	Attempt  int // consecutive failures before this attempt
	Duration time.Duration
	Code     string // output error code for failures
	Err      error
}

// Recorder receives resource hook lifecycle events.
type Recorder interface {
	FetchStarted(FetchEvent)
	FetchSucceeded(FetchEvent)
	FetchFailed(FetchEvent)
	FetchDiscarded(FetchEvent)
	CircuitOpened(FetchEvent)
}

// RequestInfo describes an outgoing API request.
type RequestInfo struct {
	Method    string
	URL       string
	Attempt   int
	RequestID string
}

// RequestResult describes the outcome of an API request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Retryable  bool
	Error      error
}

// RequestObserver receives API client request events.
type RequestObserver interface {
	OnRequestStart(ctx context.Context, info RequestInfo)
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, attempt int, err error)
}

// Nop ignores every event.
type Nop struct{}

func (Nop) FetchStarted(FetchEvent) {}
func (Nop) FetchSucceeded(FetchEvent) {}
func (Nop) FetchFailed(FetchEvent) {}
func (Nop) FetchDiscarded(FetchEvent) {}
func (Nop) CircuitOpened(FetchEvent) {}

func (Nop) OnRequestStart(context.Context, RequestInfo) {}
func (Nop) OnRequestEnd(context.Context, RequestInfo, RequestResult) {}
func (Nop) OnRetry(context.Context, RequestInfo, int, error) {}

// Recorders fans events out to several recorders. Nil entries are skipped.
type Recorders []Recorder

func (rs Recorders) each(fn func(Recorder)) {
	for _, r := range rs {
		if r != nil {
			fn(r)
		}
	}
}

func (rs Recorders) FetchStarted(e FetchEvent) { rs.each(func(r Recorder) { r.FetchStarted(e) }) }
func (rs Recorders) FetchSucceeded(e FetchEvent) { rs.each(func(r Recorder) { r.FetchSucceeded(e) }) }
func (rs Recorders) FetchFailed(e FetchEvent) { rs.each(func(r Recorder) { r.FetchFailed(e) }) }
func (rs Recorders) FetchDiscarded(e FetchEvent) { rs.each(func(r Recorder) { r.FetchDiscarded(e) }) }
func (rs Recorders) CircuitOpened(e FetchEvent) { rs.each(func(r Recorder) { r.CircuitOpened(e) }) }

// Observers fans request events out to several observers.
type Observers []RequestObserver

func (obs Observers) OnRequestStart(ctx context.Context, info RequestInfo) {
	for _, o := range obs {
		if o != nil {
			o.OnRequestStart(ctx, info)
		}
	}
}

func (obs Observers) OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult) {
	for _, o := range obs {
		if o != nil {
			o.OnRequestEnd(ctx, info, result)
		}
	}
}

func (obs Observers) OnRetry(ctx context.Context, info RequestInfo, attempt int, err error) {
	for _, o := range obs {
		if o != nil {
			o.OnRetry(ctx, info, attempt, err)
		}
	}
}

var (
	_ Recorder        = Nop{}
	_ RequestObserver = Nop{}
	_ Recorder        = Recorders(nil)
	_ RequestObserver = Observers(nil)
)
