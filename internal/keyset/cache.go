// internal/keyset/cache.go
package keyset

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"tollgate/internal/decision"
)

// Fetcher retrieves the identity provider's current public key set.
type Fetcher interface {
	Fetch(ctx context.Context) (jwk.Set, error)
}

// HTTPFetcher reads a JWKS document from the provider's published endpoint.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (jwk.Set, error) {
	return jwk.Fetch(ctx, f.url, jwk.WithHTTPClient(f.client))
}

type snapshot struct {
	set     jwk.Set
	fetched time.Time
}

// Cache holds the provider's signing keys behind a TTL. The set is replaced
// wholesale on refresh via pointer swap, so readers never observe a
// partially-updated set and never block on a refresh in flight.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time

	mu   sync.Mutex // serializes refreshes, not reads
	snap atomic.Pointer[snapshot]
}

func New(f Fetcher, ttl time.Duration, log *zap.SugaredLogger) *Cache {
	return &Cache{fetcher: f, ttl: ttl, log: log, now: time.Now}
}

// Keys returns the cached set if it is younger than the TTL, refreshing
// otherwise. A refresh failure falls back to the stale set when one exists;
// with no set at all the caller gets a KeyFetchError denial.
func (c *Cache) Keys(ctx context.Context) (jwk.Set, error) {
	if s := c.snap.Load(); s != nil && c.now().Sub(s.fetched) < c.ttl {
		return s.set, nil
	}
	return c.refresh(ctx, false)
}

// Refresh fetches unconditionally. Used once per request when a token names
// a key id not in the cached set, so a rotation is picked up without waiting
// out the TTL.
func (c *Cache) Refresh(ctx context.Context) (jwk.Set, error) {
	return c.refresh(ctx, true)
}

func (c *Cache) refresh(ctx context.Context, force bool) (jwk.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Another request may have refreshed while we waited on the lock.
	if !force {
		if s := c.snap.Load(); s != nil && c.now().Sub(s.fetched) < c.ttl {
			return s.set, nil
		}
	}
	// The fetch outlives an abandoned request: a populated cache is not
	// wasted work. The fetcher carries its own timeout.
	set, err := c.fetcher.Fetch(context.WithoutCancel(ctx))
	if err != nil {
		if s := c.snap.Load(); s != nil {
			c.log.Warnw("key material fetch failed, serving cached set", "err", err, "age", c.now().Sub(s.fetched))
			return s.set, nil
		}
		return nil, decision.Denied(decision.ReasonKeyFetchError, err)
	}
	c.snap.Store(&snapshot{set: set, fetched: c.now()})
	return set, nil
}
