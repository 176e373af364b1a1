// internal/mapping/postgres.go
package mapping

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Canonical snapshot queries. Each returns the full mapping; refreshes are
// whole-document reads, matching the external store's full-replace contract.
const (
	ClientTenantQuery = `SELECT client_id, tenant_id FROM client_tenants`
	RateLimitKeyQuery = `SELECT tenant_id, rate_limit_key FROM tenant_rate_limit_keys`
)

// PGFetcher reads a snapshot from PostgreSQL. query must return exactly two
// text columns, key then value.
type PGFetcher struct {
	pool  *pgxpool.Pool
	query string
}

func NewPGFetcher(pool *pgxpool.Pool, query string) *PGFetcher {
	return &PGFetcher{pool: pool, query: query}
}

func (f *PGFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	rows, err := f.pool.Query(ctx, f.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	snap := Snapshot{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		snap[k] = v
	}
	return snap, rows.Err()
}

// EnsureSchema creates the mapping tables if missing. Safe to call
// repeatedly; the provisioning process owns the rows, this side only reads.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS client_tenants (
  client_id text PRIMARY KEY,
  tenant_id text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS tenant_rate_limit_keys (
  tenant_id text PRIMARY KEY,
  rate_limit_key text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

// SeedClients upserts a client->tenant snapshot. Used by the seeding tool,
// never by the request path.
func SeedClients(ctx context.Context, pool *pgxpool.Pool, snap Snapshot) error {
	for client, tenant := range snap {
		if _, err := pool.Exec(ctx, `INSERT INTO client_tenants(client_id, tenant_id) VALUES ($1,$2)
		  ON CONFLICT (client_id) DO UPDATE SET tenant_id=EXCLUDED.tenant_id, updated_at=NOW()`, client, tenant); err != nil {
			return err
		}
	}
	return nil
}

// SeedRateLimitKeys upserts a tenant->rate-limit-key snapshot.
func SeedRateLimitKeys(ctx context.Context, pool *pgxpool.Pool, snap Snapshot) error {
	for tenant, key := range snap {
		if _, err := pool.Exec(ctx, `INSERT INTO tenant_rate_limit_keys(tenant_id, rate_limit_key) VALUES ($1,$2)
		  ON CONFLICT (tenant_id) DO UPDATE SET rate_limit_key=EXCLUDED.rate_limit_key, updated_at=NOW()`, tenant, key); err != nil {
			return err
		}
	}
	return nil
}
