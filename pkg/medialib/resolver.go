package medialib

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultURLLifetime is the lifetime requested for every access URL.
const DefaultURLLifetime = time.Hour

const (
	maxRefreshMargin = time.Minute
	urlCacheSize     = 8192
)

type cachedURL struct {
	url         string
	generatedAt time.Time
	expiresAt   time.Time
}

// Resolver turns object keys into time-limited download URLs. Results are
// cached per object key, not per file, because one object is shown by several
// views at once. Failed exchanges are never cached.
type Resolver struct {
	backend  Backend
	cache    *ttlcache.Cache
	group    singleflight.Group
	lifetime time.Duration
	now      func() time.Time

	// generation is bumped by Invalidate so an exchange that started
	// before it never caches a URL of a deleted object.
	generation atomic.Uint64
}

type ResolverOption func(*Resolver)

// WithURLLifetime sets the lifetime requested from the service.
func WithURLLifetime(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.lifetime = d
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(backend Backend, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		backend:  backend,
		lifetime: DefaultURLLifetime,
		now:      time.Now,
	}

	for _, o := range opts {
		o(r)
	}

	r.cache = ttlcache.NewCache()
	r.cache.SkipTTLExtensionOnHit(true)
	r.cache.SetCacheSizeLimit(urlCacheSize)

	return r
}

// refreshMargin keeps a URL from being handed out moments before it dies.
func (r *Resolver) refreshMargin() time.Duration {
	return min(maxRefreshMargin, r.lifetime/10)
}

func (r *Resolver) lookup(key string) (string, bool) {
	v, err := r.cache.Get(key)
	if err != nil {
		return "", false
	}

	entry, ok := v.(cachedURL)
	if !ok {
		return "", false
	}

	if !r.now().Before(entry.expiresAt.Add(-r.refreshMargin())) {
		r.cache.Remove(key)
		return "", false
	}

	return entry.url, true
}

func (r *Resolver) store(key string, signed SignedURL) {
	now := r.now()

	expiresAt := signed.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(r.lifetime)
	}

	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return
	}

	err := r.cache.SetWithTTL(key, cachedURL{
		url:         signed.URL,
		generatedAt: now,
		expiresAt:   expiresAt,
	}, ttl)
	if err != nil {
		zap.L().Debug("Failed to cache access url", zap.String("key", key), zap.Error(err))
	}
}

// Resolve returns a download URL for one object key, exchanging it with the
// service on a miss or after the cached URL's lifetime has passed.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, error) {
	return r.resolve(ctx, key, func() (*SignedURL, error) {
		return r.backend.ExchangeURL(ctx, key, r.lifetime)
	})
}

// ResolveCloud returns a fresh link for a cloud file whose direct URL is
// missing or expired.
func (r *Resolver) ResolveCloud(ctx context.Context, provider Provider, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrPreviewUnavailable
	}

	key := cloudCacheKey(provider, fileID)
	return r.resolve(ctx, key, func() (*SignedURL, error) {
		return r.backend.CloudFileURL(ctx, provider, fileID)
	})
}

func cloudCacheKey(provider Provider, fileID string) string {
	return "cloud:" + string(provider) + ":" + fileID
}

func (r *Resolver) resolve(ctx context.Context, key string, exchange func() (*SignedURL, error)) (string, error) {
	if key == "" {
		return "", ErrPreviewUnavailable
	}

	if u, ok := r.lookup(key); ok {
		return u, nil
	}

	gen := r.generation.Load()

	v, err, _ := r.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		if u, ok := r.lookup(key); ok {
			return u, nil
		}

		signed, err := exchange()
		if err != nil {
			return "", err
		}

		if signed == nil || signed.URL == "" {
			return "", ErrPreviewUnavailable
		}

		if r.generation.Load() == gen {
			r.store(key, *signed)
		}
		return signed.URL, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve access url for %s, %w", key, err)
	}

	return v.(string), nil
}

// ResolveMany resolves a batch of keys with one exchange per
// MaxExchangeBatch misses. Keys that could not be exchanged are left out of the result, so the
// caller shows them as preview unavailable. A non-nil error comes with every
// URL that was resolved anyway.
func (r *Resolver) ResolveMany(ctx context.Context, keys []string) (map[string]string, error) {
	urls := make(map[string]string, len(keys))
	seen := make(map[string]struct{}, len(keys))

	var misses []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		if u, ok := r.lookup(k); ok {
			urls[k] = u
			continue
		}

		misses = append(misses, k)
	}

	if len(misses) == 0 {
		return urls, nil
	}

	gen := r.generation.Load()

	// The service caps the keys of one exchange, so misses go out in
	// batches. A failed batch leaves the others' URLs in place.
	var errs []error
	for batch := range slices.Chunk(misses, MaxExchangeBatch) {
		signed, err := r.backend.ExchangeURLs(ctx, batch, r.lifetime)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to exchange %d access urls, %w", len(batch), err))
			continue
		}

		cache := r.generation.Load() == gen
		for _, k := range batch {
			s, ok := signed[k]
			if !ok || s.URL == "" {
				continue
			}

			if cache {
				r.store(k, s)
			}
			urls[k] = s.URL
		}
	}

	return urls, errors.Join(errs...)
}

// Invalidate drops cached URLs, for example after the objects were deleted.
func (r *Resolver) Invalidate(keys ...string) {
	r.generation.Add(1)

	for _, k := range keys {
		if k == "" {
			continue
		}
		r.cache.Remove(k)
	}
}

func (r *Resolver) Close() error {
	return r.cache.Close()
}
