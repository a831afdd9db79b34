package medialib

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Backend = (*fakeBackend)(nil)

func newTestResolver(t *testing.T, b *fakeBackend, clock *fakeClock) *Resolver {
	t.Helper()

	b.now = clock.Now
	r := NewResolver(b, WithClock(clock.Now), WithURLLifetime(time.Hour))
	t.Cleanup(func() { r.Close() })

	return r
}

func TestResolveServesCachedURLWithinLifetime(t *testing.T) {
	b := newFakeBackend()
	clock := newFakeClock()
	r := newTestResolver(t, b, clock)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "p1/a.png")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)

	second, err := r.Resolve(ctx, "p1/a.png")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, b.CallsWith("ExchangeURL:"), 1)
}

func TestResolveRegeneratesExpiredURL(t *testing.T) {
	b := newFakeBackend()
	clock := newFakeClock()
	r := newTestResolver(t, b, clock)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "p1/a.png")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	second, err := r.Resolve(ctx, "p1/a.png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, b.CallsWith("ExchangeURL:"), 2)
}

func TestResolveRefreshesInsideMargin(t *testing.T) {
	b := newFakeBackend()
	clock := newFakeClock()
	r := newTestResolver(t, b, clock)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "k")
	require.NoError(t, err)

	// One hour lifetime leaves a one minute margin.
	clock.Advance(59*time.Minute + 30*time.Second)

	_, err = r.Resolve(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, b.CallsWith("ExchangeURL:"), 2)
}

func TestResolveEmptyKeyIsPreviewUnavailable(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrPreviewUnavailable)
	assert.Empty(t, b.Calls())
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	b.exchangeErr = errors.New("service unavailable")

	_, err := r.Resolve(ctx, "k")
	require.Error(t, err)

	b.mu.Lock()
	b.exchangeErr = nil
	b.mu.Unlock()

	u, err := r.Resolve(ctx, "k")
	require.NoError(t, err)
	assert.Contains(t, u, "https://store.test/k")
	assert.Len(t, b.CallsWith("ExchangeURL:"), 2)
}

func TestResolveConcurrentMissesShareOneExchange(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())

	var wg sync.WaitGroup
	urls := make([]string, 16)

	for i := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()

			u, err := r.Resolve(context.Background(), "shared")
			assert.NoError(t, err)
			urls[i] = u
		}()
	}

	wg.Wait()

	assert.Len(t, b.CallsWith("ExchangeURL:"), 1)
	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}
}

func TestResolveManyUsesOneExchangeForAllMisses(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	cached, err := r.Resolve(ctx, "b")
	require.NoError(t, err)

	urls, err := r.ResolveMany(ctx, []string{"a", "b", "c", "a", ""})
	require.NoError(t, err)

	assert.Len(t, urls, 3)
	assert.Equal(t, cached, urls["b"])
	assert.Equal(t, []string{"ExchangeURLs:a,c"}, b.CallsWith("ExchangeURLs:"))
}

func TestResolveManyLeavesOutMissingKeys(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	b.missingKeys["gone"] = true

	urls, err := r.ResolveMany(ctx, []string{"gone", "ok"})
	require.NoError(t, err)
	assert.NotContains(t, urls, "gone")
	assert.Contains(t, urls, "ok")

	// Nothing negative is cached, so the next pass asks again.
	_, err = r.ResolveMany(ctx, []string{"gone", "ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ExchangeURLs:gone,ok", "ExchangeURLs:gone"}, b.CallsWith("ExchangeURLs:"))
}

func TestResolveManyReturnsCachedURLsOnError(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	_, err := r.Resolve(ctx, "hit")
	require.NoError(t, err)

	b.exchangeErr = errors.New("boom")

	urls, err := r.ResolveMany(ctx, []string{"hit", "miss"})
	require.Error(t, err)
	assert.Contains(t, urls, "hit")
	assert.NotContains(t, urls, "miss")
}

func TestResolveManySplitsLargeBatches(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())

	keys := make([]string, MaxExchangeBatch+101)
	for i := range keys {
		keys[i] = fmt.Sprintf("p1/f%d", i)
	}

	urls, err := r.ResolveMany(context.Background(), keys)
	require.NoError(t, err)

	assert.Len(t, urls, len(keys))
	assert.Len(t, b.CallsWith("ExchangeURLs:"), 2)
	assert.Contains(t, urls, keys[len(keys)-1])
}

func TestResolveManyKeepsOtherBatchesWhenOneFails(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())

	keys := make([]string, MaxExchangeBatch+10)
	for i := range keys {
		keys[i] = fmt.Sprintf("p1/f%d", i)
	}
	b.batchErr[keys[0]] = errors.New("boom")

	urls, err := r.ResolveMany(context.Background(), keys)
	require.Error(t, err)

	assert.Len(t, urls, 10)
	assert.NotContains(t, urls, keys[0])
	assert.Contains(t, urls, keys[MaxExchangeBatch])
}

func TestInvalidateDuringExchangeSkipsCaching(t *testing.T) {
	b := newFakeBackend()
	b.started = make(chan struct{})
	b.release = make(chan struct{})
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "p1/a.png")
		done <- err
	}()

	<-b.started
	r.Invalidate("p1/a.png")
	b.release <- struct{}{}
	require.NoError(t, <-done)

	go func() { <-b.started; b.release <- struct{}{} }()

	_, err := r.Resolve(ctx, "p1/a.png")
	require.NoError(t, err)

	assert.Len(t, b.CallsWith("ExchangeURL:"), 2)
}

func TestDeleteInvalidatesCachedURL(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	f := authFile("f1", "p1", nil)
	b.files = []MediaFile{f}

	before, err := ItemOf(f).AccessURL(ctx, r)
	require.NoError(t, err)

	require.NoError(t, ItemOf(f).Delete(ctx, b, r))

	after, err := r.Resolve(ctx, f.ObjectKey)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Len(t, b.CallsWith("ExchangeURL:"), 2)
}

func TestResolveCloudUsesProviderScopedKey(t *testing.T) {
	b := newFakeBackend()
	r := newTestResolver(t, b, newFakeClock())
	ctx := context.Background()

	first, err := r.ResolveCloud(ctx, ProviderGoogleDrive, "drive-1")
	require.NoError(t, err)

	second, err := r.ResolveCloud(ctx, ProviderGoogleDrive, "drive-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"CloudFileURL:google_drive/drive-1"}, b.CallsWith("CloudFileURL:"))

	_, err = r.Resolve(ctx, "drive-1")
	require.NoError(t, err)
	assert.Len(t, b.CallsWith("ExchangeURL:"), 1)
}
