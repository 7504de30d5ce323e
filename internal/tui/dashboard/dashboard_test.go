package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
)

func panel(name string, calls *atomic.Int32, fn func(n int32) (any, error)) Panel {
	src := func(ctx context.Context, q api.Query) (any, *resource.PageMeta, error) {
		data, err := fn(calls.Add(1))
		return data, nil, err
	}
	return Panel{
		Entry: school.Entry{Name: name},
		Hook:  resource.Erase(resource.NewSource[api.Query, any](src, resource.Options[any]{Key: name})),
	}
}

// drain runs cmd and every command it produces, feeding messages back into
// the model. Spinner ticks are dropped so the loop terminates.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "command loop did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, nil:
		default:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func TestDashboardLoadsEveryPanel(t *testing.T) {
	var a, b atomic.Int32
	m := New(context.Background(), "campus", nil, []Panel{
		panel("branches", &a, func(int32) (any, error) { return []any{1, 2}, nil }),
		panel("fee-summary", &b, func(int32) (any, error) { return map[string]any{"total_due": 10.0}, nil }),
	})

	m = drain(t, m, m.Init())

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
	view := m.View()
	assert.Contains(t, view, "branches")
	assert.Contains(t, view, "2 items")
	assert.Contains(t, view, "total_due=10")
}

func TestDashboardStopsRetryingAtThreshold(t *testing.T) {
	var calls atomic.Int32
	m := New(context.Background(), "campus", nil, []Panel{
		panel("tasks", &calls, func(int32) (any, error) { return nil, errors.New("dial tcp: connection refused") }),
	})

	m = drain(t, m, m.Init())
	assert.Equal(t, int32(resource.DefaultRetryThreshold), calls.Load())
	assert.Contains(t, m.View(), resource.MsgCircuitOpen)

	// Further renders do not fetch.
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = drain(t, next.(Model), cmd)
	assert.Equal(t, int32(resource.DefaultRetryThreshold), calls.Load())
}

func TestDashboardManualRetry(t *testing.T) {
	var calls atomic.Int32
	m := New(context.Background(), "campus", nil, []Panel{
		panel("tasks", &calls, func(n int32) (any, error) {
			if n <= 3 {
				return nil, errors.New("request timeout")
			}
			return []any{"done"}, nil
		}),
	})
	m = drain(t, m, m.Init())
	require.Equal(t, int32(3), calls.Load())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = drain(t, next.(Model), cmd)

	assert.Equal(t, int32(4), calls.Load())
	assert.Contains(t, m.View(), "1 items")
	assert.NotContains(t, m.View(), resource.MsgCircuitOpen)
}

func TestDashboardCursor(t *testing.T) {
	var a, b atomic.Int32
	ok := func(int32) (any, error) { return []any{}, nil }
	m := New(context.Background(), "campus", nil, []Panel{panel("a", &a, ok), panel("b", &b, ok)})

	down := tea.KeyMsg{Type: tea.KeyDown}
	next, _ := m.Update(down)
	next, _ = next.Update(down)
	assert.Equal(t, 1, next.(Model).cursor)

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestDashboardQuit(t *testing.T) {
	m := New(context.Background(), "campus", nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "2 items", summarize(resource.Result[any]{Data: []any{1, 2}}))
	assert.Equal(t, "2 of 40", summarize(resource.Result[any]{Data: []any{1, 2}, Meta: &resource.PageMeta{Count: 40}}))
	assert.Equal(t, "a=1 b=2 c=3 …", summarize(resource.Result[any]{Data: map[string]any{"a": 1, "b": 2, "c": 3, "d": 4}}))
	assert.Equal(t, "3 items", summarize(resource.Result[any]{Data: []school.Branch{{ID: 1}, {ID: 2}, {ID: 3}}}))
	assert.Equal(t, "id=4 name=North", summarize(resource.Result[any]{Data: school.Branch{ID: 4, Name: "North"}}))
	assert.Equal(t, "2 rooms, 3 beds free", summarize(resource.Result[any]{Data: []school.HostelRoom{
		{Capacity: 4, Occupied: 2},
		{Capacity: 2, Occupied: 1},
	}}))
	assert.Equal(t, "750.00 of 1000.00 collected, 1 defaulters",
		summarize(resource.Result[any]{Data: school.FeeSummary{TotalDue: 1000, TotalCollected: 750, DefaulterCount: 1}}))
}

func TestDashboardFeeSummaryPanel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_due": 1000, "total_collected": 750, "defaulter_count": 1}`))
	}))
	defer srv.Close()
	c, err := api.NewClient(api.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	svc := school.NewService(c, resource.NewGroup(context.Background(), "dashboard"), nil, nil, 0)
	e := school.MustLookup("fee-summary")
	m := New(context.Background(), "campus", nil, []Panel{{Entry: e, Hook: svc.Hook(e)}})
	m = drain(t, m, m.Init())

	assert.Contains(t, m.View(), "750.00 of 1000.00 collected, 1 defaulters")
}
