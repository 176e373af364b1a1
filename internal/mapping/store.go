// internal/mapping/store.go
package mapping

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tollgate/internal/decision"
)

// Snapshot is one full, versionless copy of an externally-owned flat mapping.
// Refreshes replace it wholesale; there is no incremental update protocol.
type Snapshot map[string]string

// Fetcher reads the current snapshot from the external store.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

type cached struct {
	data    Snapshot
	fetched time.Time
}

// Store is a read-through TTL cache over one snapshot. Lookups on a fresh
// snapshot never touch the external store; a miss within the TTL window is
// authoritative. Refresh swaps an immutable snapshot pointer, so concurrent
// readers see either the old or the new copy, never a mix.
//
// When a refresh fails and a stale snapshot exists, the stale copy is served:
// a false deny is a full outage for the tenant, while staleness is bounded by
// the provisioning cadence. StoreUnavailable surfaces only on a cold cache.
type Store struct {
	name    string
	fetcher Fetcher
	ttl     time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time

	mu   sync.Mutex // serializes refreshes, not reads
	snap atomic.Pointer[cached]
}

func NewStore(name string, f Fetcher, ttl time.Duration, log *zap.SugaredLogger) *Store {
	return &Store{name: name, fetcher: f, ttl: ttl, log: log, now: time.Now}
}

// Lookup resolves key against the current snapshot, refreshing it first when
// the TTL has lapsed. ok reports whether the key exists; err is non-nil only
// when no snapshot could be obtained at all.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	data, err := s.current(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *Store) current(ctx context.Context) (Snapshot, error) {
	if c := s.snap.Load(); c != nil && s.now().Sub(c.fetched) < s.ttl {
		return c.data, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.snap.Load(); c != nil && s.now().Sub(c.fetched) < s.ttl {
		return c.data, nil
	}
	// Detached from the request: an abandoned caller still fills the cache
	// for everyone behind it. The fetcher carries its own timeout.
	data, err := s.fetcher.Fetch(context.WithoutCancel(ctx))
	if err != nil {
		if c := s.snap.Load(); c != nil {
			s.log.Warnw("snapshot fetch failed, serving stale", "map", s.name, "err", err, "age", s.now().Sub(c.fetched))
			return c.data, nil
		}
		return nil, decision.Denied(decision.ReasonStoreUnavailable, err)
	}
	s.snap.Store(&cached{data: data, fetched: s.now()})
	s.log.Debugw("snapshot refreshed", "map", s.name, "entries", len(data))
	return data, nil
}
