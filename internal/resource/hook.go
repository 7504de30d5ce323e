// Package resource implements the resource fetch hook: a typed unit that
// owns the loading/error/data lifecycle of one logical list or object fetch,
// dedupes requests by params, discards superseded results and stops
// retrying automatically after repeated failures.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resilience"
)

// DefaultRetryThreshold is the number of consecutive failures after which
// automatic fetching stops.
const DefaultRetryThreshold = 3

// Fetcher retrieves the payload for params.
type Fetcher[P, T any] func(ctx context.Context, params P) (T, error)

// Source is a fetcher that also reports list pagination.
type Source[P, T any] func(ctx context.Context, params P) (T, *PageMeta, error)

// Source adapts f to a Source without pagination.
func (f Fetcher[P, T]) Source() Source[P, T] {
	return func(ctx context.Context, params P) (T, *PageMeta, error) {
		data, err := f(ctx, params)
		return data, nil, err
	}
}

// Options configures a Hook.
type Options[T any] struct {
	// Key names the hook in logs, metrics and UpdatedMsg.
	Key string

	// InitialValue is the data reported before the first successful fetch.
	InitialValue T

	// RetryThreshold is the number of consecutive failures that blocks
	// automatic fetching. Default: 3
	RetryThreshold int

	// Lazy suppresses automatic fetching until the first Refetch.
	Lazy bool

	// FreshTTL makes settled data stale after this long, so the next Use
	// refetches. Zero means settled data never goes stale.
	FreshTTL time.Duration

	Logger   *slog.Logger
	Recorder observability.Recorder
}

// Hook manages the fetch lifecycle of one resource. It is safe for
// concurrent use; each hook owns its state and shares nothing.
type Hook[P, T any] struct {
	mu       sync.Mutex
	key      string
	source   Source[P, T]
	opts     Options[T]
	breaker  *resilience.Breaker
	logger   *slog.Logger
	recorder observability.Recorder
	now      func() time.Time
	refetch  func(ctx context.Context) tea.Cmd

	params    P
	paramsKey string

	// requestedKey is the params key of the latest attempt; an unchanged
	// key means the effect has already been requested.
	requestedKey string
	requested    bool
	armed        bool
	seq          uint64
	inflight     bool
	cancel       context.CancelFunc
	invalidated  bool

	status    Status
	data      T
	hasData   bool
	err       error
	message   string
	fetchedAt time.Time
	meta      *PageMeta

	// paramsErr is set while the latest Use carried unserializable params.
	// It overlays the result without touching the fetch lifecycle.
	paramsErr error
}

// New creates a hook over fetch.
func New[P, T any](fetch Fetcher[P, T], opts Options[T]) *Hook[P, T] {
	return NewSource(fetch.Source(), opts)
}

// NewRaw creates a hook over a fetcher returning raw response bodies,
// unwrapping results envelopes.
func NewRaw[P, T any](fetch RawFetcher[P], opts Options[T]) *Hook[P, T] {
	return NewSource(FromRaw[P, T](fetch), opts)
}

// NewSource creates a hook over a paginating source.
func NewSource[P, T any](src Source[P, T], opts Options[T]) *Hook[P, T] {
	threshold := opts.RetryThreshold
	if threshold <= 0 {
		threshold = DefaultRetryThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	var recorder observability.Recorder = observability.Nop{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	h := &Hook[P, T]{
		key:      opts.Key,
		source:   src,
		opts:     opts,
		breaker:  resilience.NewBreaker(resilience.NewMemoryStore(), resilience.RetryPolicyConfig(threshold)),
		logger:   logger.With("key", opts.Key),
		recorder: recorder,
		now:      time.Now,
		armed:    !opts.Lazy,
		data:     opts.InitialValue,
	}
	h.refetch = h.Refetch
	h.paramsKey, _ = ParamsKey(h.params)
	if h.armed {
		h.status = StatusLoading
	}
	return h
}

// Key returns the hook's identifier.
func (h *Hook[P, T]) Key() string { return h.key }

// Get returns the current result without starting anything.
func (h *Hook[P, T]) Get() Result[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resultLocked()
}

// Use is the render call: it records params and returns the current result
// plus the effect to run, or nil when nothing needs fetching. A new fetch
// starts only when the serialized params differ from the last requested
// ones, when the last attempt failed and the circuit is still closed, or
// when settled data went stale.
func (h *Hook[P, T]) Use(ctx context.Context, params P) (Result[T], tea.Cmd) {
	key, err := ParamsKey(params)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err != nil {
		// Unserializable params are a caller bug; report without
		// counting toward the retry threshold.
		if h.paramsErr == nil || h.paramsErr.Error() != err.Error() {
			h.logger.Error("invalid params", "error", err)
		}
		h.paramsErr = err
		return h.resultLocked(), nil
	}
	h.paramsErr = nil

	if key != h.paramsKey {
		h.params = params
		h.paramsKey = key
	}

	var cmd tea.Cmd
	if h.shouldFetchLocked() {
		cmd = h.startLocked(ctx, false)
	}
	return h.resultLocked(), cmd
}

// Load runs Use and its effect synchronously, for callers without an
// event loop.
func (h *Hook[P, T]) Load(ctx context.Context, params P) Result[T] {
	res, cmd := h.Use(ctx, params)
	if cmd == nil {
		return res
	}
	cmd()
	return h.Get()
}

// Refetch resets the retry counter, unblocks the hook and starts exactly
// one fetch with the latest params. Any in-flight attempt is superseded.
func (h *Hook[P, T]) Refetch(ctx context.Context) tea.Cmd {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.armed = true
	if err := h.breaker.Reset(); err != nil {
		h.logger.Error("retry reset failed", "error", err)
	}
	return h.startLocked(ctx, true)
}

// Reload is Refetch run synchronously.
func (h *Hook[P, T]) Reload(ctx context.Context) Result[T] {
	h.Refetch(ctx)()
	return h.Get()
}

// Invalidate marks settled data stale; the next Use refetches.
func (h *Hook[P, T]) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusSettled {
		h.invalidated = true
	}
}

// Clear cancels any in-flight fetch and resets the hook to its initial
// state, including the retry counter.
func (h *Hook[P, T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	_ = h.breaker.Reset()

	h.inflight = false
	h.requested = false
	h.requestedKey = ""
	h.invalidated = false
	h.armed = !h.opts.Lazy
	h.status = StatusIdle
	if h.armed {
		h.status = StatusLoading
	}
	h.data = h.opts.InitialValue
	h.hasData = false
	h.err = nil
	h.message = ""
	h.fetchedAt = time.Time{}
	h.meta = nil
	h.paramsErr = nil
}

func (h *Hook[P, T]) blockedLocked() bool {
	state, err := h.breaker.State()
	return err == nil && state == resilience.CircuitOpen
}

func (h *Hook[P, T]) staleLocked() bool {
	if h.status != StatusSettled {
		return false
	}
	if h.invalidated {
		return true
	}
	return h.opts.FreshTTL > 0 && h.now().Sub(h.fetchedAt) >= h.opts.FreshTTL
}

func (h *Hook[P, T]) shouldFetchLocked() bool {
	if !h.armed || h.blockedLocked() {
		return false
	}
	if !h.requested || h.requestedKey != h.paramsKey {
		return true
	}
	if h.inflight {
		return false
	}
	return h.status == StatusFailed || h.staleLocked()
}

// startLocked begins a new attempt, superseding any in-flight one.
func (h *Hook[P, T]) startLocked(ctx context.Context, manual bool) tea.Cmd {
	h.seq++
	seq := h.seq
	if h.cancel != nil {
		h.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.inflight = true
	h.requested = true
	h.requestedKey = h.paramsKey
	h.invalidated = false
	h.status = StatusLoading

	params := h.params
	event := observability.FetchEvent{
		Key:     h.key,
		Params:  h.paramsKey,
		Seq:     seq,
		Manual:  manual,
		Attempt: h.breaker.Failures(),
	}
	h.recorder.FetchStarted(event)

	return func() tea.Msg {
		start := time.Now()
		data, meta, err := h.call(fetchCtx, params)
		cancel()
		event.Duration = time.Since(start)
		return h.resolve(seq, event, data, meta, err)
	}
}

// call invokes the source, converting a panic into an error.
func (h *Hook[P, T]) call(ctx context.Context, params P) (data T, meta *PageMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return h.source(ctx, params)
}

func (h *Hook[P, T]) resolve(seq uint64, event observability.FetchEvent, data T, meta *PageMeta, err error) tea.Msg {
	h.mu.Lock()
	defer h.mu.Unlock()

	if seq != h.seq {
		h.logger.Debug("discarded stale result", "seq", seq, "latest", h.seq)
		h.recorder.FetchDiscarded(event)
		return UpdatedMsg{Key: h.key, Seq: seq, Stale: true}
	}
	h.inflight = false
	h.cancel = nil

	if err != nil {
		h.failLocked(err)
		event.Err = h.err
		event.Code = output.AsError(h.err).Code
		h.recorder.FetchFailed(event)
		if h.status == StatusBlocked {
			event.Attempt = h.breaker.Failures()
			h.recorder.CircuitOpened(event)
		}
		return UpdatedMsg{Key: h.key, Seq: seq}
	}

	if recErr := h.breaker.RecordSuccess(); recErr != nil {
		h.logger.Error("retry bookkeeping failed", "error", recErr)
	}
	h.status = StatusSettled
	h.data = data
	h.hasData = true
	h.meta = meta
	h.err = nil
	h.message = ""
	h.fetchedAt = h.now()
	h.recorder.FetchSucceeded(event)
	return UpdatedMsg{Key: h.key, Seq: seq}
}

// failLocked records a failure, opening the circuit at the threshold.
// Data is left unchanged.
func (h *Hook[P, T]) failLocked(err error) {
	fault := Classify(err)
	opened, recErr := h.breaker.RecordFailure()
	if recErr != nil {
		h.logger.Error("retry bookkeeping failed", "error", recErr)
	}
	attempt := h.breaker.Failures()

	h.logger.Warn("hook fetch failed",
		"code", fault.Code,
		"attempt", attempt,
		"error", err)

	h.status = StatusFailed
	h.err = fault
	h.message = Describe(fault)

	if opened {
		h.logger.Warn("automatic retries stopped", "failures", attempt)
		h.status = StatusBlocked
		h.err = output.ErrCircuitOpen(fault)
		h.message = MsgCircuitOpen
	}
}

func (h *Hook[P, T]) resultLocked() Result[T] {
	status := h.status
	if status != StatusLoading && h.blockedLocked() {
		status = StatusBlocked
	}
	err, message := h.err, h.message
	if h.paramsErr != nil {
		err, message = h.paramsErr, h.paramsErr.Error()
		if !h.inflight && status != StatusBlocked {
			status = StatusFailed
		}
	}
	return Result[T]{
		Data:       h.data,
		Loading:    status == StatusLoading,
		Error:      message,
		Err:        err,
		Status:     status,
		RetryCount: h.breaker.Failures(),
		FetchedAt:  h.fetchedAt,
		HasData:    h.hasData,
		Stale:      h.staleLocked(),
		Meta:       h.meta,
		Refetch:    h.refetch,
	}
}
