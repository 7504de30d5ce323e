package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Group owns a set of hooks with a shared lifecycle: a screen, a branch
// session, a CLI invocation. Teardown cancels the group context, which
// aborts in-flight fetches started with it, and clears every member.
type Group struct {
	mu      sync.RWMutex
	name    string
	ctx     context.Context
	cancel  context.CancelFunc
	members map[string]Member
}

// NewGroup creates a group with a cancelable context derived from parent.
func NewGroup(parent context.Context, name string) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		members: make(map[string]Member),
	}
}

// Name returns the group's identifier.
func (g *Group) Name() string { return g.name }

// Context returns the group's context. Canceled on teardown.
func (g *Group) Context() context.Context { return g.ctx }

// Register adds a member under key.
func (g *Group) Register(key string, m Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[key] = m
}

// Member returns a registered member by key, or nil.
func (g *Group) Member(key string) Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.members[key]
}

// Keys returns member keys in sorted order.
func (g *Group) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.members))
	for k := range g.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Invalidate marks every member stale.
func (g *Group) Invalidate() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range g.members {
		m.Invalidate()
	}
}

// Teardown cancels the group context and clears all members.
// The group should not be reused afterwards.
func (g *Group) Teardown() {
	g.cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		m.Clear()
	}
	g.members = make(map[string]Member)
}

// GroupMember retrieves or creates a typed member. Each key maps to exactly
// one concrete type; a mismatch is a programming error and panics.
func GroupMember[M Member](g *Group, key string, create func() M) M {
	g.mu.RLock()
	if m, ok := g.members[key]; ok {
		g.mu.RUnlock()
		return mustType[M](g, key, m)
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[key]; ok {
		return mustType[M](g, key, m)
	}
	m := create()
	g.members[key] = m
	return m
}

func mustType[M Member](g *Group, key string, m Member) M {
	typed, ok := m.(M)
	if !ok {
		panic(fmt.Sprintf("group %q: member %q has type %T, want %T", g.name, key, m, *new(M)))
	}
	return typed
}
