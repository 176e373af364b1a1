package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tollgate/internal/authorizer"
	"tollgate/internal/keyset"
	"tollgate/internal/mapping"
	"tollgate/internal/token"
	"tollgate/pkg/config"
	"tollgate/pkg/db"
	"tollgate/pkg/logger"
	"tollgate/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if cfg.Issuer == "" || cfg.JWKSURL == "" {
		log.Fatalw("identity provider not configured", "issuer", cfg.Issuer, "jwks_url", cfg.JWKSURL)
	}

	keys := keyset.New(keyset.NewHTTPFetcher(cfg.JWKSURL, cfg.FetchTimeout), cfg.JWKSCacheTTL, log)
	verifier, err := token.NewVerifier(keys, token.Options{
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		AllowedAlgs:      cfg.AllowedAlgs,
		ClientIDClaim:    cfg.ClientIDClaim,
		RequiredTokenUse: cfg.RequiredTokenUse,
	})
	if err != nil {
		log.Fatalw("verifier init", "err", err)
	}

	resolver := buildResolver(cfg, log)
	metrics := authorizer.NewMetrics(prometheus.DefaultRegisterer)
	svc := authorizer.NewService(verifier, resolver, metrics, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	authorizer.RegisterHTTP(r, svc)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("authorizer-service listening", "addr", cfg.HTTPAddr, "backend", cfg.MappingBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("authorizer-service stopped")
}

// buildResolver wires the two snapshot stores to the configured backend.
func buildResolver(cfg config.Config, log *zap.SugaredLogger) *mapping.Resolver {
	var clientF, limitF mapping.Fetcher
	switch cfg.MappingBackend {
	case "postgres":
		pool := db.MustConnect(cfg, log)
		if pool == nil {
			log.Fatalw("postgres mapping backend requires DATABASE_URL")
		}
		if err := mapping.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("mapping schema", "err", err)
		}
		clientF = mapping.NewPGFetcher(pool, mapping.ClientTenantQuery)
		limitF = mapping.NewPGFetcher(pool, mapping.RateLimitKeyQuery)
	case "redis":
		rdb := db.MustRedis(cfg, log)
		if rdb == nil {
			log.Fatalw("redis mapping backend requires REDIS_URL")
		}
		clientKey, limitKey := cfg.ClientMapRedisKey, cfg.RateLimitMapRedisKey
		if clientKey == "" {
			clientKey = mapping.ClientTenantKey
		}
		if limitKey == "" {
			limitKey = mapping.RateLimitKeyKey
		}
		clientF = mapping.NewRedisFetcher(rdb, clientKey)
		limitF = mapping.NewRedisFetcher(rdb, limitKey)
	case "static":
		// Dev bring-up: both maps inline in env, never refreshed.
		clients, err := mapping.ParseSeed([]byte(cfg.ClientMapSeedJSON))
		if err != nil {
			log.Fatalw("CLIENT_TENANT_MAP_JSON", "err", err)
		}
		limits, err := mapping.ParseSeed([]byte(cfg.RateLimitMapSeedJSON))
		if err != nil {
			log.Fatalw("TENANT_RATE_LIMIT_MAP_JSON", "err", err)
		}
		clientF = mapping.StaticFetcher{Data: clients}
		limitF = mapping.StaticFetcher{Data: limits}
	case "http":
		if cfg.ClientMapURL == "" || cfg.RateLimitMapURL == "" {
			log.Fatalw("http mapping backend requires CLIENT_TENANT_MAP_URL and TENANT_RATE_LIMIT_MAP_URL")
		}
		clientF = mapping.NewHTTPFetcher(cfg.ClientMapURL, cfg.FetchTimeout)
		limitF = mapping.NewHTTPFetcher(cfg.RateLimitMapURL, cfg.FetchTimeout)
	default:
		log.Fatalw("unknown mapping backend", "backend", cfg.MappingBackend)
	}
	clients := mapping.NewStore("client_tenants", clientF, cfg.MappingTTL, log)
	limits := mapping.NewStore("tenant_rate_limit_keys", limitF, cfg.MappingTTL, log)
	return mapping.NewResolver(clients, limits)
}
