package cache

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/zap"
)

// SignedURLCache maps object keys to signed URLs (or recorded failures) until
// they expire. Expired entries are evicted lazily on read; there is no
// cleanup goroutine.
type SignedURLCache struct {
	mu          sync.Mutex
	entries     map[string]Entry
	now         func() time.Time
	skew        time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
	counters    counters
}

type Option func(*SignedURLCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *SignedURLCache) { c.now = now }
}

func WithSkew(skew time.Duration) Option {
	return func(c *SignedURLCache) { c.skew = skew }
}

func WithNegativeTTL(ttl time.Duration) Option {
	return func(c *SignedURLCache) { c.negativeTTL = ttl }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *SignedURLCache) { c.logger = logger }
}

func New(opts ...Option) *SignedURLCache {
	c := &SignedURLCache{
		entries:     make(map[string]Entry),
		now:         time.Now,
		skew:        DefaultSkew,
		negativeTTL: DefaultNegativeTTL,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key composes the cache key for an object path within a namespace such as a
// bucket name.
func Key(namespace, objectPath string) string {
	return namespace + ":" + objectPath
}

// Get returns the cached URL when a positive entry is still valid. Negative
// and missing entries both report false; use Lookup to tell them apart.
func (c *SignedURLCache) Get(key string) (string, bool) {
	entry, state := c.Lookup(key)
	if state != Fresh {
		return "", false
	}
	return entry.URL, true
}

// Lookup reads key and reports whether it is fresh, negative or absent.
func (c *SignedURLCache) Lookup(key string) (Entry, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.counters.miss()
		return Entry{}, Absent
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		c.counters.expire()
		c.counters.miss()
		return Entry{}, Absent
	}
	if entry.Negative {
		c.counters.negativeHit()
		return entry, Negative
	}
	c.counters.hit()
	return entry, Fresh
}

// Set stores url for key using the default skew and returns the expiry.
func (c *SignedURLCache) Set(key, url string, ttl time.Duration) time.Time {
	return c.SetWithSkew(key, url, ttl, c.skew)
}

// SetWithSkew stores url for key, trusting it for ttl minus skew (never less
// than zero). It overwrites any previous entry, positive or negative.
func (c *SignedURLCache) SetWithSkew(key, url string, ttl, skew time.Duration) time.Time {
	effective := max(ttl-skew, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt := c.now().Add(effective)
	c.entries[key] = Entry{URL: url, ExpiresAt: expiresAt}
	c.counters.set()
	return expiresAt
}

// SetNegative records a failed resolution for key for the negative TTL.
func (c *SignedURLCache) SetNegative(key string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt := c.now().Add(c.negativeTTL)
	c.entries[key] = Entry{ExpiresAt: expiresAt, Negative: true}
	c.counters.setNegative()
	return expiresAt
}

// Remaining reports how long entry stays valid by the cache's clock.
func (c *SignedURLCache) Remaining(entry Entry) time.Duration {
	return max(entry.ExpiresAt.Sub(c.now()), 0)
}

func (c *SignedURLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.counters.invalidate()
	}
}

func (c *SignedURLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	clear(c.entries)
	c.logger.Debug("signed url cache cleared", zap.Int("entries", n))
}

// Close disposes of the cache. It is safe to keep using it afterwards; it
// simply starts empty.
func (c *SignedURLCache) Close() {
	stats := c.Stats()
	c.Clear()
	c.logger.Info("signed url cache closed",
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("negative_hits", stats.NegativeHits),
	)
}

func (c *SignedURLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type counters struct {
	hits, misses, negativeHits uint64
	sets, negativeSets         uint64
	expirations, invalidations uint64
}

// The process-wide Prometheus counters are shared by every cache instance.
var (
	hitsTotal          = metrics.NewCounter(`signed_url_cache_lookups_total{result="fresh"}`)
	negativeHitsTotal  = metrics.NewCounter(`signed_url_cache_lookups_total{result="negative"}`)
	missesTotal        = metrics.NewCounter(`signed_url_cache_lookups_total{result="absent"}`)
	setsTotal          = metrics.NewCounter(`signed_url_cache_sets_total{kind="positive"}`)
	negativeSetsTotal  = metrics.NewCounter(`signed_url_cache_sets_total{kind="negative"}`)
	expirationsTotal   = metrics.NewCounter(`signed_url_cache_expirations_total`)
	invalidationsTotal = metrics.NewCounter(`signed_url_cache_invalidations_total`)
)

func (c *counters) hit() { c.hits++; hitsTotal.Inc() }
func (c *counters) miss() { c.misses++; missesTotal.Inc() }
func (c *counters) negativeHit() { c.negativeHits++; negativeHitsTotal.Inc() }
func (c *counters) set() { c.sets++; setsTotal.Inc() }
func (c *counters) setNegative() { c.negativeSets++; negativeSetsTotal.Inc() }
func (c *counters) expire() { c.expirations++; expirationsTotal.Inc() }
func (c *counters) invalidate() { c.invalidations++; invalidationsTotal.Inc() }
