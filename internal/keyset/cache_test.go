package keyset

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/decision"
	"tollgate/pkg/logger"
)

type fakeFetcher struct {
	mu    sync.Mutex
	set   jwk.Set
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context) (jwk.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.set, f.err
}

func (f *fakeFetcher) swap(set jwk.Set, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set, f.err = set, err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSet(t *testing.T, kid string) jwk.Set {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(priv.Public())
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))
	return set
}

func newTestCache(f Fetcher, ttl time.Duration, at *time.Time) *Cache {
	c := New(f, ttl, logger.Nop())
	c.now = func() time.Time { return *at }
	return c
}

func TestKeysCachesWithinTTL(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	for i := 0; i < 5; i++ {
		set, err := c.Keys(context.Background())
		require.NoError(t, err)
		_, ok := set.LookupKeyID("kid-1")
		assert.True(t, ok)
	}
	assert.Equal(t, 1, f.count(), "one fetch serves all calls within the TTL")
}

func TestKeysRefetchesAfterTTL(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	_, err := c.Keys(context.Background())
	require.NoError(t, err)

	f.swap(testSet(t, "kid-2"), nil)
	now = now.Add(16 * time.Minute)

	set, err := c.Keys(context.Background())
	require.NoError(t, err)
	_, ok := set.LookupKeyID("kid-2")
	assert.True(t, ok, "expired cache picks up the rotated set")
	assert.Equal(t, 2, f.count())
}

func TestRefreshBypassesTTL(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	_, err := c.Keys(context.Background())
	require.NoError(t, err)

	f.swap(testSet(t, "kid-2"), nil)
	set, err := c.Refresh(context.Background())
	require.NoError(t, err)
	_, ok := set.LookupKeyID("kid-2")
	assert.True(t, ok)
	assert.Equal(t, 2, f.count())
}

func TestServesStaleOnFetchFailure(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	_, err := c.Keys(context.Background())
	require.NoError(t, err)

	f.swap(nil, errors.New("endpoint unreachable"))
	now = now.Add(time.Hour)

	set, err := c.Keys(context.Background())
	require.NoError(t, err, "stale set is served while the endpoint is down")
	_, ok := set.LookupKeyID("kid-1")
	assert.True(t, ok)
}

func TestKeyFetchErrorWhenColdAndDown(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{err: errors.New("endpoint unreachable")}
	c := newTestCache(f, 15*time.Minute, &now)

	_, err := c.Keys(context.Background())
	require.Error(t, err)
	var den *decision.Denial
	require.ErrorAs(t, err, &den)
	assert.Equal(t, decision.ReasonKeyFetchError, den.Reason)
}

func TestConcurrentReaders(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := c.Keys(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, set)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.count(), "concurrent cold start performs a single fetch")
}

func TestRefreshSurvivesCancelledRequest(t *testing.T) {
	now := time.Now()
	f := &fakeFetcher{set: testSet(t, "kid-1")}
	c := newTestCache(f, 15*time.Minute, &now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone
	set, err := c.Keys(ctx)
	require.NoError(t, err, "abandoned request still populates the cache")
	assert.NotNil(t, set)
}
