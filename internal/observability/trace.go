package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// sensitiveParams are query parameter names scrubbed from trace output.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"secret":        true,
	"client_secret": true,
}

// TraceWriter outputs human-readable trace lines with timestamps relative
// to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a TraceWriter that writes to w.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{writer: w, startTime: time.Now()}
}

func (t *TraceWriter) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] "+format+"\n", append([]any{elapsed}, args...)...)
}

// WriteFetchStart writes a fetch start line.
// Format: [0.234s] Fetching students #3 (manual)
func (t *TraceWriter) WriteFetchStart(e FetchEvent) {
	suffix := ""
	if e.Manual {
		suffix = " (manual)"
	}
	t.printf("Fetching %s #%d%s", e.Key, e.Seq, suffix)
}

// WriteFetchEnd writes a fetch completion or failure line.
// Format: [0.234s] Fetched students #3 (45ms)
func (t *TraceWriter) WriteFetchEnd(e FetchEvent) {
	if e.Err != nil {
		t.printf("Failed %s #%d [%s]: %v", e.Key, e.Seq, e.Code, e.Err)
		return
	}
	t.printf("Fetched %s #%d (%dms)", e.Key, e.Seq, e.Duration.Milliseconds())
}

// WriteDiscard writes a stale-result line.
func (t *TraceWriter) WriteDiscard(e FetchEvent) {
	t.printf("Discarded stale %s #%d", e.Key, e.Seq)
}

// WriteCircuitOpen writes a line when a hook stops retrying.
func (t *TraceWriter) WriteCircuitOpen(e FetchEvent) {
	t.printf("Circuit open for %s after %d failures", e.Key, e.Attempt)
}

// WriteRequestStart writes a request start line with sensitive query
// parameters redacted.
// Format: [0.234s]   -> GET /api/students/?page=2
func (t *TraceWriter) WriteRequestStart(info RequestInfo) {
	t.printf("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd writes a request completion line.
// Format: [0.234s]   <- 200 (45ms)
func (t *TraceWriter) WriteRequestEnd(result RequestResult) {
	if result.Error != nil {
		t.printf("  <- ERROR: %v", result.Error)
		return
	}
	t.printf("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

// WriteRetry writes a retry line.
// Format: [0.234s]   RETRY #2: connection reset
func (t *TraceWriter) WriteRetry(attempt int, err error) {
	t.printf("  RETRY #%d: %v", attempt, err)
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubURL redacts sensitive query parameters. Unparseable URLs are replaced
// by a placeholder.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}
	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
