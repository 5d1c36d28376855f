package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muandane/special-stack/signet/internal/cache"
	"github.com/muandane/special-stack/signet/internal/config"
	"github.com/muandane/special-stack/signet/internal/storage"
)

// ErrNegativeCached means a recent signing attempt for the object failed and
// the failure is still cached.
var ErrNegativeCached = errors.New("signing recently failed for this object")

// NegativeCachedError carries how long the failure stays cached.
type NegativeCachedError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *NegativeCachedError) Error() string {
	return fmt.Sprintf("%s: %v (retry in %s)", e.Key, ErrNegativeCached, e.RetryAfter)
}

func (e *NegativeCachedError) Unwrap() error {
	return ErrNegativeCached
}

// Result is a resolved URL. State is Fresh when it came from the cache and
// Absent when it was just signed. ExpiresAt is when the cache stops trusting
// it.
type Result struct {
	URL       string
	State     cache.State
	ExpiresAt time.Time
}

var (
	signRequestsTotal = metrics.NewCounter(`signed_url_sign_requests_total{result="ok"}`)
	signFailuresTotal = metrics.NewCounter(`signed_url_sign_requests_total{result="error"}`)
	signDuration      = metrics.NewHistogram(`signed_url_sign_duration_seconds`)
)

// Resolver answers "give me a display URL for this object", signing only
// when the cache has nothing usable.
type Resolver struct {
	store      storage.Store
	urls       *cache.SignedURLCache
	limiter    *rate.Limiter
	defaultTTL time.Duration
	maxTTL     time.Duration
	logger     *zap.Logger
}

func New(store storage.Store, urls *cache.SignedURLCache, cfg config.SigningConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:      store,
		urls:       urls,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		defaultTTL: cfg.DefaultTTL,
		maxTTL:     cfg.MaxTTL,
		logger:     logger,
	}
}

// TTL clamps a requested lifetime; zero or negative selects the default.
func (r *Resolver) TTL(requested time.Duration) time.Duration {
	switch {
	case requested <= 0:
		return r.defaultTTL
	case requested < time.Second:
		return time.Second
	case requested > r.maxTTL:
		return r.maxTTL
	}
	return requested
}

// Resolve returns a signed URL for bucket/objectPath. A cached failure is
// reported as *NegativeCachedError without contacting storage. A fresh
// signing failure is cached as negative and returned.
func (r *Resolver) Resolve(ctx context.Context, bucket, objectPath string, ttl time.Duration) (Result, error) {
	key := cache.Key(bucket, objectPath)
	logger := r.logger.With(zap.String("key", key))

	entry, state := r.urls.Lookup(key)
	switch state {
	case cache.Fresh:
		logger.Debug("serving signed url from cache",
			zap.String("expires", humanize.Time(entry.ExpiresAt)))
		return Result{URL: entry.URL, State: cache.Fresh, ExpiresAt: entry.ExpiresAt}, nil
	case cache.Negative:
		logger.Debug("signing suppressed by negative cache")
		return Result{State: cache.Negative, ExpiresAt: entry.ExpiresAt},
			&NegativeCachedError{Key: key, RetryAfter: r.urls.Remaining(entry)}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return Result{State: cache.Absent}, fmt.Errorf("waiting for signing slot: %w", err)
	}

	ttl = r.TTL(ttl)
	start := time.Now()
	signed, err := r.store.SignURL(ctx, bucket, objectPath, ttl)
	signDuration.UpdateDuration(start)
	if err != nil {
		signFailuresTotal.Inc()
		if ctx.Err() != nil {
			// The caller went away; that says nothing about the object.
			return Result{State: cache.Absent}, err
		}
		r.urls.SetNegative(key)
		logger.Warn("signing failed, caching negative result", zap.Error(err))
		return Result{State: cache.Absent}, fmt.Errorf("sign %s: %w", key, err)
	}
	signRequestsTotal.Inc()

	expiresAt := r.urls.Set(key, signed, ttl)
	logger.Debug("signed url minted", zap.Duration("ttl", ttl))
	return Result{URL: signed, State: cache.Absent, ExpiresAt: expiresAt}, nil
}
