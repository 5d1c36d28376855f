package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache() (*SignedURLCache, *fakeClock) {
	clock := newFakeClock()
	return New(WithClock(clock.Now)), clock
}

func TestGetUnsetKey(t *testing.T) {
	c, _ := newTestCache()

	url, ok := c.Get("avatars:nobody/avatar.jpg")
	assert.False(t, ok)
	assert.Empty(t, url)

	_, state := c.Lookup("avatars:nobody/avatar.jpg")
	assert.Equal(t, Absent, state)
}

func TestSetThenGet(t *testing.T) {
	c, _ := newTestCache()

	c.Set("k", "https://x", 60*time.Second)

	url, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "https://x", url)
}

func TestSkewShortensTTL(t *testing.T) {
	c, clock := newTestCache()

	c.SetWithSkew("k", "https://x", 60*time.Second, 10*time.Second)

	clock.Advance(49 * time.Second)
	url, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "https://x", url)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	c, clock := newTestCache()

	c.SetWithSkew("k", "https://x", 60*time.Second, 10*time.Second)
	clock.Advance(50 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDefaultSkewApplied(t *testing.T) {
	c, clock := newTestCache()

	c.Set("k", "https://x", 60*time.Second)
	entry, state := c.Lookup("k")
	require.Equal(t, Fresh, state)
	assert.Equal(t, clock.Now().Add(50*time.Second), entry.ExpiresAt)

	c2 := New(WithClock(clock.Now), WithSkew(0))
	c2.Set("k", "https://x", 60*time.Second)
	entry, _ = c2.Lookup("k")
	assert.Equal(t, clock.Now().Add(60*time.Second), entry.ExpiresAt)
}

func TestSkewLargerThanTTLIsImmediatelyAbsent(t *testing.T) {
	c, _ := newTestCache()

	c.SetWithSkew("k", "https://x", 5*time.Second, 10*time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestNegativeEntry(t *testing.T) {
	c, clock := newTestCache()

	c.SetNegative("avatars:blocked/avatar.png")

	url, ok := c.Get("avatars:blocked/avatar.png")
	assert.False(t, ok, "Get reports a negative entry as no URL")
	assert.Empty(t, url)

	entry, state := c.Lookup("avatars:blocked/avatar.png")
	assert.Equal(t, Negative, state)
	assert.True(t, entry.Negative)
	assert.Equal(t, clock.Now().Add(DefaultNegativeTTL), entry.ExpiresAt)

	clock.Advance(14 * time.Second)
	_, state = c.Lookup("avatars:blocked/avatar.png")
	assert.Equal(t, Negative, state)

	clock.Advance(time.Second)
	_, state = c.Lookup("avatars:blocked/avatar.png")
	assert.Equal(t, Absent, state)
}

func TestRemaining(t *testing.T) {
	c, clock := newTestCache()

	c.SetNegative("k")
	clock.Advance(4 * time.Second)
	entry, state := c.Lookup("k")
	require.Equal(t, Negative, state)
	assert.Equal(t, 11*time.Second, c.Remaining(entry))

	clock.Advance(time.Minute)
	assert.Equal(t, time.Duration(0), c.Remaining(entry))
}

func TestCustomNegativeTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithNegativeTTL(3*time.Second))

	c.SetNegative("k")
	clock.Advance(3 * time.Second)

	_, state := c.Lookup("k")
	assert.Equal(t, Absent, state)
}

func TestSetTransitionsBetweenStates(t *testing.T) {
	c, _ := newTestCache()

	c.SetNegative("k")
	c.Set("k", "https://ok", time.Minute)
	entry, state := c.Lookup("k")
	assert.Equal(t, Fresh, state)
	assert.Equal(t, "https://ok", entry.URL)

	c.SetNegative("k")
	_, state = c.Lookup("k")
	assert.Equal(t, Negative, state)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache()

	c.Set("k", "https://x", time.Hour)
	c.Invalidate("k")

	_, ok := c.Get("k")
	assert.False(t, ok)

	// unknown keys are fine
	c.Invalidate("missing")
}

func TestClear(t *testing.T) {
	c, clock := newTestCache()

	c.Set("a", "https://a", time.Hour)
	c.Set("b", "https://b", 11*time.Second)
	c.SetNegative("c")
	clock.Advance(5 * time.Second)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	for _, k := range []string{"a", "b", "c"} {
		_, state := c.Lookup(k)
		assert.Equal(t, Absent, state, k)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	c, clock := newTestCache()

	c.Set("k", "https://x", time.Minute)
	for n := 0; n < 3; n++ {
		url, ok := c.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "https://x", url)
	}

	clock.Advance(time.Minute)
	for n := 0; n < 3; n++ {
		_, ok := c.Get("k")
		assert.False(t, ok)
	}
}

func TestAvatarOverwriteScenario(t *testing.T) {
	c, _ := newTestCache()
	key := Key("avatars", "u1/avatar.jpg")
	require.Equal(t, "avatars:u1/avatar.jpg", key)

	c.SetWithSkew(key, "https://signed/1", 60*time.Second, 10*time.Second)
	url, _ := c.Get(key)
	assert.Equal(t, "https://signed/1", url)

	c.SetWithSkew(key, "https://signed/2", 60*time.Second, 10*time.Second)
	url, _ = c.Get(key)
	assert.Equal(t, "https://signed/2", url)

	c.Invalidate(key)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	c, clock := newTestCache()

	c.Set("a", "https://a", time.Minute)
	c.Set("b", "https://b", 20*time.Second)
	c.SetNegative("c")

	c.Get("a")
	c.Get("missing")
	c.Lookup("c")

	stats := c.Stats()
	assert.Equal(t, 3, stats.EntryCount)
	assert.Equal(t, 2, stats.PositiveEntries)
	assert.Equal(t, 1, stats.NegativeEntries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.NegativeHits)
	assert.Equal(t, uint64(2), stats.Sets)
	assert.Equal(t, uint64(1), stats.NegativeSets)
	assert.Equal(t, clock.Now().Add(10*time.Second), stats.NextExpiry)
	assert.InDelta(t, 1.0/3.0, stats.HitRatio, 1e-9)

	clock.Advance(12 * time.Second)
	stats = c.Stats()
	assert.Equal(t, 1, stats.ExpiredEntries)
	assert.Equal(t, 1, stats.PositiveEntries)

	c.Get("b")
	c.Invalidate("a")
	stats = c.Stats()
	assert.Equal(t, uint64(1), stats.Expirations)
	assert.Equal(t, uint64(1), stats.Invalidations)
}

func TestClose(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", "https://a", time.Minute)

	c.Close()
	assert.Equal(t, 0, c.Len())

	c.Set("a", "https://a2", time.Minute)
	url, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "https://a2", url)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := Key("avatars", "u/avatar.jpg")
				if (i+j)%3 == 0 {
					c.SetNegative(key)
				} else {
					c.Set(key, "https://x", time.Minute)
				}
				c.Lookup(key)
				if j%50 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "negative", Negative.String())
}
