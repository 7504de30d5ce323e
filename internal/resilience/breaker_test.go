package resilience

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(store Store, cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	b := NewBreaker(store, cfg)
	b.now = clock.now
	return b, clock
}

func TestBreakerDefaultsClosed(t *testing.T) {
	b := NewBreaker(NewMemoryStore(), BreakerConfig{})

	state, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, state)

	allowed, err := b.Allow()
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 5, b.Config().FailureThreshold)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(NewMemoryStore(), BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		opened, err := b.RecordFailure()
		require.NoError(t, err)
		assert.False(t, opened)
	}
	opened, err := b.RecordFailure()
	require.NoError(t, err)
	assert.True(t, opened, "third failure should open the circuit")

	state, _ := b.State()
	assert.Equal(t, CircuitOpen, state)

	allowed, _ := b.Allow()
	assert.False(t, allowed)
	assert.Equal(t, 3, b.Failures())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(NewMemoryStore(), BreakerConfig{FailureThreshold: 3})

	_, _ = b.RecordFailure()
	_, _ = b.RecordFailure()
	require.NoError(t, b.RecordSuccess())
	assert.Equal(t, 0, b.Failures())

	_, _ = b.RecordFailure()
	_, _ = b.RecordFailure()
	state, _ := b.State()
	assert.Equal(t, CircuitClosed, state)
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b, clock := newTestBreaker(NewMemoryStore(), BreakerConfig{
		FailureThreshold:    1,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	})

	_, _ = b.RecordFailure()
	allowed, _ := b.Allow()
	assert.False(t, allowed)

	clock.advance(31 * time.Second)
	state, _ := b.State()
	assert.Equal(t, CircuitHalfOpen, state)

	allowed, _ = b.Allow()
	assert.True(t, allowed, "first probe is let through")
	allowed, _ = b.Allow()
	assert.False(t, allowed, "second concurrent probe is rejected")

	require.NoError(t, b.RecordSuccess())
	state, _ = b.State()
	assert.Equal(t, CircuitClosed, state)
}

func TestBreakerFailureInHalfOpenReopens(t *testing.T) {
	b, clock := newTestBreaker(NewMemoryStore(), BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})

	_, _ = b.RecordFailure()
	clock.advance(2 * time.Second)
	allowed, _ := b.Allow()
	require.True(t, allowed)

	opened, err := b.RecordFailure()
	require.NoError(t, err)
	assert.True(t, opened)

	allowed, _ = b.Allow()
	assert.False(t, allowed)
}

func TestBreakerManualResetStaysOpen(t *testing.T) {
	b, clock := newTestBreaker(NewMemoryStore(), RetryPolicyConfig(3))

	for i := 0; i < 3; i++ {
		_, _ = b.RecordFailure()
	}
	clock.advance(24 * time.Hour)

	state, _ := b.State()
	assert.Equal(t, CircuitOpen, state)
	allowed, _ := b.Allow()
	assert.False(t, allowed)

	require.NoError(t, b.Reset())
	allowed, _ = b.Allow()
	assert.True(t, allowed)
	assert.Equal(t, 0, b.Failures())
}

type brokenStore struct{}

func (brokenStore) Load() (BreakerState, error) { return BreakerState{}, errors.New("disk gone") }
func (brokenStore) Update(func(*BreakerState) error) error {
	return errors.New("disk gone")
}

func TestBreakerFailsOpenOnStoreError(t *testing.T) {
	b := NewBreaker(brokenStore{}, BreakerConfig{})
	allowed, err := b.Allow()
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryStoreUpdateErrorLeavesState(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(func(st *BreakerState) error {
		st.Failures = 9
		return errors.New("abort")
	})
	require.Error(t, err)
	st, _ := s.Load()
	assert.Equal(t, 0, st.Failures)
}

func TestFileStoreSharedBetweenBreakers(t *testing.T) {
	dir := t.TempDir()
	cfg := BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute}

	first := NewBreaker(NewFileStore(dir, "api"), cfg)
	second := NewBreaker(NewFileStore(dir, "api"), cfg)

	_, err := first.RecordFailure()
	require.NoError(t, err)
	opened, err := second.RecordFailure()
	require.NoError(t, err)
	assert.True(t, opened, "failures from both processes count toward the threshold")

	allowed, _ := first.Allow()
	assert.False(t, allowed)
}

func TestFileStoreMissingAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, "api")

	st, err := s.Load()
	require.NoError(t, err)
	assert.True(t, st.IsClosed())

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))
	st, err = s.Load()
	require.NoError(t, err)
	assert.True(t, st.IsClosed())

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear(), "clearing twice is fine")
}

func TestDefaultStateDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/campus/resilience", DefaultStateDir())
}
