// ABOUTME: Tests for the submission replay guard
// ABOUTME: Validates TTL expiry, session scoping, eviction, sweeping and concurrency

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard(t *testing.T, ttl time.Duration, maxSize int) (*Guard, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := New(ttl, maxSize)
	g.now = clock.Now
	t.Cleanup(g.Close)
	return g, clock
}

func TestGuard_FirstClaimSucceeds(t *testing.T) {
	g, _ := newTestGuard(t, time.Minute, 100)

	require.NoError(t, g.Claim("s1", "n1"))
	assert.True(t, g.Claimed("s1", "n1"))
}

func TestGuard_ReplayRejected(t *testing.T) {
	g, _ := newTestGuard(t, time.Minute, 100)

	require.NoError(t, g.Claim("s1", "n1"))
	assert.ErrorIs(t, g.Claim("s1", "n1"), ErrReplayed)
}

func TestGuard_ScopedBySession(t *testing.T) {
	g, _ := newTestGuard(t, time.Minute, 100)

	require.NoError(t, g.Claim("s1", "n1"))
	assert.NoError(t, g.Claim("s2", "n1"), "same nonce in another session is independent")
	assert.False(t, g.Claimed("s3", "n1"))
}

func TestGuard_ExpiredClaimCanBeReused(t *testing.T) {
	g, clock := newTestGuard(t, time.Minute, 100)

	require.NoError(t, g.Claim("s1", "n1"))
	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, g.Claim("s1", "n1"), ErrReplayed)

	clock.Advance(2 * time.Second)
	assert.False(t, g.Claimed("s1", "n1"))
	assert.NoError(t, g.Claim("s1", "n1"))
	assert.Equal(t, 1, g.Len())
}

func TestGuard_EvictsOldest(t *testing.T) {
	g, _ := newTestGuard(t, time.Hour, 3)

	for _, n := range []string{"a", "b", "c", "d"} {
		require.NoError(t, g.Claim("s", n))
	}

	assert.Equal(t, 3, g.Len())
	assert.False(t, g.Claimed("s", "a"), "oldest claim evicted")
	assert.True(t, g.Claimed("s", "d"))
}

func TestGuard_Forget(t *testing.T) {
	g, _ := newTestGuard(t, time.Hour, 100)

	require.NoError(t, g.Claim("s1", "a"))
	require.NoError(t, g.Claim("s1", "b"))
	require.NoError(t, g.Claim("s2", "a"))

	assert.Equal(t, 2, g.Forget("s1"))
	assert.Equal(t, 1, g.Len())
	assert.NoError(t, g.Claim("s1", "a"))
	assert.Equal(t, 0, g.Forget("unknown"))
}

func TestGuard_Sweep(t *testing.T) {
	g, clock := newTestGuard(t, time.Minute, 100)

	require.NoError(t, g.Claim("s", "old"))
	clock.Advance(30 * time.Second)
	require.NoError(t, g.Claim("s", "new"))
	clock.Advance(45 * time.Second)

	g.sweep()

	assert.Equal(t, 1, g.Len())
	assert.True(t, g.Claimed("s", "new"))
}

func TestGuard_ConcurrentClaimIsAtomic(t *testing.T) {
	g, _ := newTestGuard(t, time.Minute, 1000)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			if g.Claim("s", "same") == nil {
				accepted.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}

func TestGuard_CloseTwice(t *testing.T) {
	g := New(time.Minute, 10)
	g.Close()
	g.Close()
}
