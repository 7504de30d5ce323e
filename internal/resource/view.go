package resource

import (
	"context"
	"reflect"

	tea "github.com/charmbracelet/bubbletea"
)

// View is a hook with its data type erased, for callers that hold hooks of
// several types side by side.
type View[P any] interface {
	Member
	Key() string
	Get() Result[any]
	Use(ctx context.Context, params P) (Result[any], tea.Cmd)
	Load(ctx context.Context, params P) Result[any]
	Refetch(ctx context.Context) tea.Cmd
	Reload(ctx context.Context) Result[any]
}

var _ View[struct{}] = (*erased[struct{}, int])(nil)

// Erase wraps h as a View. The view shares h's state.
func Erase[P, T any](h *Hook[P, T]) View[P] {
	return &erased[P, T]{h: h}
}

type erased[P, T any] struct {
	h *Hook[P, T]
}

func (e *erased[P, T]) Key() string { return e.h.Key() }

func (e *erased[P, T]) Invalidate() { e.h.Invalidate() }

func (e *erased[P, T]) Clear() { e.h.Clear() }

func (e *erased[P, T]) Get() Result[any] { return widen(e.h.Get()) }

func (e *erased[P, T]) Use(ctx context.Context, params P) (Result[any], tea.Cmd) {
	res, cmd := e.h.Use(ctx, params)
	return widen(res), cmd
}

func (e *erased[P, T]) Load(ctx context.Context, params P) Result[any] {
	return widen(e.h.Load(ctx, params))
}

func (e *erased[P, T]) Refetch(ctx context.Context) tea.Cmd { return e.h.Refetch(ctx) }

func (e *erased[P, T]) Reload(ctx context.Context) Result[any] {
	return widen(e.h.Reload(ctx))
}

func widen[T any](r Result[T]) Result[any] {
	return Result[any]{
		Data:       r.Data,
		Loading:    r.Loading,
		Error:      r.Error,
		Err:        r.Err,
		Status:     r.Status,
		RetryCount: r.RetryCount,
		FetchedAt:  r.FetchedAt,
		HasData:    r.HasData,
		Stale:      r.Stale,
		Meta:       r.Meta,
		Refetch:    r.Refetch,
	}
}

// ItemCount returns the length of data when it is a slice.
func ItemCount(data any) (int, bool) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return 0, false
	}
	return v.Len(), true
}
