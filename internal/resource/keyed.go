package resource

import "sync"

// Member is the non-generic lifecycle surface shared by hooks of any type.
type Member interface {
	Invalidate()
	Clear()
}

var (
	_ Member = (*Hook[struct{}, int])(nil)
	_ Member = (*KeyedHook[int, struct{}, int])(nil)
)

// KeyedHook manages hooks keyed by a parent ID: allocations per hostel
// room, payments per student, fee summaries per branch.
type KeyedHook[K comparable, P, T any] struct {
	mu      sync.RWMutex
	hooks   map[K]*Hook[P, T]
	factory func(key K) *Hook[P, T]
}

// NewKeyedHook creates a KeyedHook that builds hooks on demand. Every hook
// has independent fetch and retry state.
func NewKeyedHook[K comparable, P, T any](factory func(key K) *Hook[P, T]) *KeyedHook[K, P, T] {
	return &KeyedHook[K, P, T]{
		hooks:   make(map[K]*Hook[P, T]),
		factory: factory,
	}
}

// Get returns the hook for key, creating it if needed.
func (kh *KeyedHook[K, P, T]) Get(key K) *Hook[P, T] {
	kh.mu.RLock()
	if h, ok := kh.hooks[key]; ok {
		kh.mu.RUnlock()
		return h
	}
	kh.mu.RUnlock()

	kh.mu.Lock()
	defer kh.mu.Unlock()
	if h, ok := kh.hooks[key]; ok {
		return h
	}
	h := kh.factory(key)
	kh.hooks[key] = h
	return h
}

// Has reports whether a hook exists for key.
func (kh *KeyedHook[K, P, T]) Has(key K) bool {
	kh.mu.RLock()
	defer kh.mu.RUnlock()
	_, ok := kh.hooks[key]
	return ok
}

// Len returns the number of hooks created so far.
func (kh *KeyedHook[K, P, T]) Len() int {
	kh.mu.RLock()
	defer kh.mu.RUnlock()
	return len(kh.hooks)
}

// Invalidate marks every hook's settled data stale.
func (kh *KeyedHook[K, P, T]) Invalidate() {
	kh.mu.RLock()
	defer kh.mu.RUnlock()
	for _, h := range kh.hooks {
		h.Invalidate()
	}
}

// Clear clears and drops every hook.
func (kh *KeyedHook[K, P, T]) Clear() {
	kh.mu.Lock()
	defer kh.mu.Unlock()
	for _, h := range kh.hooks {
		h.Clear()
	}
	kh.hooks = make(map[K]*Hook[P, T])
}
