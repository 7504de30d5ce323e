package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomHooks(calls *int) *KeyedHook[int, struct{}, []string] {
	return NewKeyedHook(func(room int) *Hook[struct{}, []string] {
		return New(func(context.Context, struct{}) ([]string, error) {
			*calls++
			return []string{"student"}, nil
		}, Options[[]string]{})
	})
}

func TestKeyedHookCreatesOnDemand(t *testing.T) {
	calls := 0
	kh := roomHooks(&calls)

	assert.False(t, kh.Has(101))
	a := kh.Get(101)
	assert.Same(t, a, kh.Get(101))
	assert.True(t, kh.Has(101))

	kh.Get(102)
	assert.Equal(t, 2, kh.Len())
}

func TestKeyedHookIndependentState(t *testing.T) {
	calls := 0
	kh := roomHooks(&calls)

	render(kh.Get(101), struct{}{})
	render(kh.Get(102), struct{}{})
	render(kh.Get(101), struct{}{})
	assert.Equal(t, 2, calls)

	kh.Invalidate()
	render(kh.Get(101), struct{}{})
	assert.Equal(t, 3, calls)

	kh.Clear()
	assert.Equal(t, 0, kh.Len())
}

func TestGroupTeardown(t *testing.T) {
	g := NewGroup(context.Background(), "dashboard")
	calls := 0

	h := GroupMember(g, "branches", func() *Hook[struct{}, int] {
		return New(func(context.Context, struct{}) (int, error) {
			calls++
			return 7, nil
		}, Options[int]{Key: "branches"})
	})
	same := GroupMember(g, "branches", func() *Hook[struct{}, int] {
		t.Fatal("create called twice")
		return nil
	})
	assert.Same(t, h, same)
	assert.Equal(t, []string{"branches"}, g.Keys())
	assert.Equal(t, "dashboard", g.Name())

	res := render(h, struct{}{})
	assert.Equal(t, 7, res.Data)

	g.Invalidate()
	assert.True(t, h.Get().Stale)

	g.Teardown()
	require.Error(t, g.Context().Err())
	assert.Nil(t, g.Member("branches"))
	assert.False(t, h.Get().HasData)
}

func TestGroupMemberTypeMismatchPanics(t *testing.T) {
	g := NewGroup(context.Background(), "screen")
	g.Register("fees", New(func(context.Context, struct{}) (int, error) { return 0, nil }, Options[int]{}))

	assert.Panics(t, func() {
		GroupMember(g, "fees", func() *Hook[struct{}, string] { return nil })
	})
}
