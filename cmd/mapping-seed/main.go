// Command mapping-seed loads a tenant seed file and writes both mapping
// snapshots to the configured backend. It stands in for the provisioning
// process in dev and demo environments; production mappings are owned by an
// external workflow.
//
// Seed file format:
//
//	{
//	  "client_tenants":          {"c-123": "tenant-A"},
//	  "tenant_rate_limit_keys":  {"tenant-A": "key-abc"}
//	}
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"tollgate/internal/mapping"
	"tollgate/pkg/config"
	"tollgate/pkg/db"
	"tollgate/pkg/logger"
)

type seedFile struct {
	ClientTenants      mapping.Snapshot `json:"client_tenants"`
	TenantRateLimitKey mapping.Snapshot `json:"tenant_rate_limit_keys"`
}

func main() {
	path := flag.String("seed", "seed.json", "path to the seed file")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.Env)

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalw("read seed", "path", *path, "err", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalw("parse seed", "path", *path, "err", err)
	}

	ctx := context.Background()
	switch cfg.MappingBackend {
	case "postgres":
		pool := db.MustConnect(cfg, log)
		if pool == nil {
			log.Fatalw("postgres backend requires DATABASE_URL")
		}
		if err := mapping.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("ensure schema", "err", err)
		}
		if err := mapping.SeedClients(ctx, pool, seed.ClientTenants); err != nil {
			log.Fatalw("seed client map", "err", err)
		}
		if err := mapping.SeedRateLimitKeys(ctx, pool, seed.TenantRateLimitKey); err != nil {
			log.Fatalw("seed rate limit map", "err", err)
		}
	case "redis":
		rdb := db.MustRedis(cfg, log)
		if rdb == nil {
			log.Fatalw("redis backend requires REDIS_URL")
		}
		clientKey, limitKey := cfg.ClientMapRedisKey, cfg.RateLimitMapRedisKey
		if clientKey == "" {
			clientKey = mapping.ClientTenantKey
		}
		if limitKey == "" {
			limitKey = mapping.RateLimitKeyKey
		}
		clientDoc, _ := json.Marshal(seed.ClientTenants)
		limitDoc, _ := json.Marshal(seed.TenantRateLimitKey)
		if err := mapping.SeedRedis(ctx, rdb, clientKey, clientDoc); err != nil {
			log.Fatalw("seed client map", "err", err)
		}
		if err := mapping.SeedRedis(ctx, rdb, limitKey, limitDoc); err != nil {
			log.Fatalw("seed rate limit map", "err", err)
		}
	default:
		log.Fatalw("seeding supports postgres and redis backends only", "backend", cfg.MappingBackend)
	}
	log.Infow("seeded mappings",
		"backend", cfg.MappingBackend,
		"clients", len(seed.ClientTenants),
		"tenants", len(seed.TenantRateLimitKey))
}
