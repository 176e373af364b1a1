// internal/mapping/redis.go
package mapping

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Default keys under which the provisioner publishes snapshot documents.
const (
	ClientTenantKey = "tollgate:client_tenants"
	RateLimitKeyKey = "tollgate:tenant_rate_limit_keys"
)

// RedisFetcher reads a snapshot stored as one JSON document at a key. The
// provisioner SETs the whole document on every change.
type RedisFetcher struct {
	rdb *redis.Client
	key string
}

func NewRedisFetcher(rdb *redis.Client, key string) *RedisFetcher {
	return &RedisFetcher{rdb: rdb, key: key}
}

func (f *RedisFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	doc, err := f.rdb.Get(ctx, f.key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("snapshot key %s: %w", f.key, err)
	}
	return ParseSeed(doc)
}

// SeedRedis writes a snapshot document for the given key. Seeding tool only.
func SeedRedis(ctx context.Context, rdb *redis.Client, key string, doc []byte) error {
	if _, err := ParseSeed(doc); err != nil {
		return fmt.Errorf("seed for %s is not a flat JSON mapping: %w", key, err)
	}
	return rdb.Set(ctx, key, doc, 0).Err()
}
