package resource

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Status is the lifecycle phase of a hook.
type Status int

const (
	StatusIdle    Status = iota // lazy hook that has not been asked to fetch
	StatusLoading               // a fetch is outstanding
	StatusSettled               // last fetch succeeded
	StatusFailed                // last fetch failed, automatic retry allowed
	StatusBlocked               // failure threshold reached, waiting for Refetch
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Result is what a render sees: the data, the loading flag, the user-facing
// error message and the bound refetch trigger.
type Result[T any] struct {
	Data    T
	Loading bool
	// Error is the user-facing message, empty when the last operation did
	// not fail.
	Error string
	Err   error

	Status     Status
	RetryCount int
	FetchedAt  time.Time
	HasData    bool // distinguishes InitialValue from fetched data
	Stale      bool // settled data was invalidated or outlived FreshTTL
	Meta       *PageMeta

	// Refetch is bound once per hook; its identity never changes.
	Refetch func(ctx context.Context) tea.Cmd
}

// Failed reports whether the last operation failed, blocked or not.
func (r Result[T]) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusBlocked
}

// Blocked reports whether automatic fetching is suppressed.
func (r Result[T]) Blocked() bool {
	return r.Status == StatusBlocked
}

// UpdatedMsg is emitted by a hook effect once its fetch resolves.
// Stale is true when the result was discarded because a newer attempt
// superseded it; consumers can ignore those.
type UpdatedMsg struct {
	Key   string
	Seq   uint64
	Stale bool
}
