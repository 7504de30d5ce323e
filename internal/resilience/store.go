// Package resilience provides circuit breaking for school API calls, with
// state kept in memory for a single consumer or in a locked file shared by
// concurrent campus processes.
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Store loads and atomically updates breaker state.
type Store interface {
	Load() (BreakerState, error)
	Update(fn func(*BreakerState) error) error
}

// MemoryStore keeps breaker state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state BreakerState
}

// NewMemoryStore creates a store holding a closed breaker.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewBreakerState()}
}

// Load returns a copy of the current state.
func (m *MemoryStore) Load() (BreakerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Update applies fn under the store lock. The state is left untouched if fn fails.
func (m *MemoryStore) Update(fn func(*BreakerState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	if err := fn(&next); err != nil {
		return err
	}
	m.state = next
	return nil
}

// LockTimeout is the maximum time to wait for the file lock.
// If exceeded, operations proceed without locking (fail-open) to avoid CLI hangs.
const LockTimeout = 100 * time.Millisecond

// FileStore persists one breaker's state as JSON under dir, guarded by a
// flock so concurrent processes read-modify-write safely.
type FileStore struct {
	dir  string
	name string
}

// NewFileStore creates a file-backed store. If dir is empty the user cache
// directory is used.
func NewFileStore(dir, name string) *FileStore {
	if dir == "" {
		dir = DefaultStateDir()
	}
	return &FileStore{dir: dir, name: name}
}

// DefaultStateDir returns the platform cache directory for breaker state.
func DefaultStateDir() string {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, "campus", "resilience")
	}
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "campus", "resilience")
	}
	return filepath.Join(os.TempDir(), "campus", "resilience")
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.name+".json")
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, "."+s.name+".lock")
}

// acquireLock returns nil without error if the lock could not be taken
// within LockTimeout; callers then proceed unlocked.
func (s *FileStore) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

// Load reads the state from disk. A missing or corrupt file reads as closed.
func (s *FileStore) Load() (BreakerState, error) {
	fl, err := s.acquireLock()
	if err != nil {
		return BreakerState{}, err
	}
	if fl != nil {
		defer func() { _ = fl.Unlock() }()
	}
	return s.loadUnlocked()
}

func (s *FileStore) loadUnlocked() (BreakerState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewBreakerState(), nil
		}
		return BreakerState{}, err
	}

	var state BreakerState
	if err := json.Unmarshal(data, &state); err != nil {
		return NewBreakerState(), nil
	}
	return state, nil
}

// Update loads, modifies, and saves the state while holding the lock.
func (s *FileStore) Update(fn func(*BreakerState) error) error {
	fl, err := s.acquireLock()
	if err != nil {
		return err
	}
	if fl != nil {
		defer func() { _ = fl.Unlock() }()
	}

	state, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if err := fn(&state); err != nil {
		return err
	}
	return s.saveUnlocked(state)
}

func (s *FileStore) saveUnlocked(state BreakerState) error {
	state.Version = StateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name so unlocked (fail-open) writers never collide.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Clear removes the state file.
func (s *FileStore) Clear() error {
	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
