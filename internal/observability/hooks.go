package observability

import (
	"context"
	"sync"
)

// CLIHooks routes hook and request events to the session collector and
// trace writer. Verbosity levels:
//   - 0: silent (collect stats only)
//   - 1: hook fetches
//   - 2: hook fetches + HTTP requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

var (
	_ Recorder        = (*CLIHooks)(nil)
	_ RequestObserver = (*CLIHooks)(nil)
)

// NewCLIHooks creates CLIHooks at the given level. Nil collector or writer
// disables that sink.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{level: level, collector: collector, writer: writer}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) sinks() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

func (h *CLIHooks) FetchStarted(e FetchEvent) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.FetchStarted(e)
	}
	if level >= 1 && writer != nil {
		writer.WriteFetchStart(e)
	}
}

func (h *CLIHooks) FetchSucceeded(e FetchEvent) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.FetchSucceeded(e)
	}
	if level >= 1 && writer != nil {
		writer.WriteFetchEnd(e)
	}
}

func (h *CLIHooks) FetchFailed(e FetchEvent) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.FetchFailed(e)
	}
	if level >= 1 && writer != nil {
		writer.WriteFetchEnd(e)
	}
}

func (h *CLIHooks) FetchDiscarded(e FetchEvent) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.FetchDiscarded(e)
	}
	if level >= 1 && writer != nil {
		writer.WriteDiscard(e)
	}
}

func (h *CLIHooks) CircuitOpened(e FetchEvent) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.CircuitOpened(e)
	}
	if level >= 1 && writer != nil {
		writer.WriteCircuitOpen(e)
	}
}

// OnRequestStart is called before an HTTP request is sent.
func (h *CLIHooks) OnRequestStart(_ context.Context, info RequestInfo) {
	level, _, writer := h.sinks()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
}

// OnRequestEnd is called after an HTTP request completes.
func (h *CLIHooks) OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.OnRequestEnd(ctx, info, result)
	}
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(result)
	}
}

// OnRetry is called before a retry attempt.
func (h *CLIHooks) OnRetry(ctx context.Context, info RequestInfo, attempt int, err error) {
	level, collector, writer := h.sinks()
	if collector != nil {
		collector.OnRetry(ctx, info, attempt, err)
	}
	if level >= 2 && writer != nil {
		writer.WriteRetry(attempt, err)
	}
}
