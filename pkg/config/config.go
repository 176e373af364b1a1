// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is static per deployment; there is no runtime reconfiguration.
type Config struct {
	Env      string
	HTTPAddr string

	// Identity provider
	Issuer           string
	Audience         string
	JWKSURL          string
	AllowedAlgs      []string
	ClientIDClaim    string // jmespath over the verified claims
	RequiredTokenUse string // empty disables the token_use check

	// Cache & fetch budgets
	JWKSCacheTTL time.Duration
	MappingTTL   time.Duration
	FetchTimeout time.Duration

	// Mapping store backend: http | postgres | redis | static
	MappingBackend string

	// http backend: snapshot document URLs
	ClientMapURL    string
	RateLimitMapURL string

	// redis backend: snapshot document keys
	ClientMapRedisKey    string
	RateLimitMapRedisKey string

	// static backend: inline JSON documents (dev bring-up)
	ClientMapSeedJSON    string
	RateLimitMapSeedJSON string

	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("TOLLGATE_ENV", "dev"),
		HTTPAddr:             env("TOLLGATE_HTTP_ADDR", ":8080"),
		Issuer:               env("OIDC_ISSUER", ""),
		Audience:             env("OIDC_AUDIENCE", "tollgate-api"),
		JWKSURL:              env("JWKS_URL", ""),
		AllowedAlgs:          envList("ALLOWED_ALGS", "RS256,RS384,RS512,ES256,ES384,ES512,PS256"),
		ClientIDClaim:        env("CLIENT_ID_CLAIM", "client_id || sub"),
		RequiredTokenUse:     env("REQUIRED_TOKEN_USE", "access"),
		JWKSCacheTTL:         envDur("JWKS_CACHE_TTL_SEC", 900) * time.Second,
		MappingTTL:           envDur("MAPPING_CACHE_TTL_SEC", 300) * time.Second,
		FetchTimeout:         envDur("FETCH_TIMEOUT_MS", 300) * time.Millisecond,
		MappingBackend:       env("MAPPING_BACKEND", "http"),
		ClientMapURL:         env("CLIENT_TENANT_MAP_URL", ""),
		RateLimitMapURL:      env("TENANT_RATE_LIMIT_MAP_URL", ""),
		ClientMapRedisKey:    env("CLIENT_TENANT_MAP_REDIS_KEY", ""),
		RateLimitMapRedisKey: env("TENANT_RATE_LIMIT_MAP_REDIS_KEY", ""),
		ClientMapSeedJSON:    env("CLIENT_TENANT_MAP_JSON", ""),
		RateLimitMapSeedJSON: env("TENANT_RATE_LIMIT_MAP_JSON", ""),
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
	}
	if path := os.Getenv("TOLLGATE_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			log.Printf("[WARN] config file %s: %v", path, err)
		}
	}
	return cfg
}

// fileConfig mirrors the overridable subset of Config for the optional YAML
// deployment file. Env vars fill anything the file leaves out.
type fileConfig struct {
	Env              string   `yaml:"env"`
	HTTPAddr         string   `yaml:"http_addr"`
	Issuer           string   `yaml:"issuer"`
	Audience         string   `yaml:"audience"`
	JWKSURL          string   `yaml:"jwks_url"`
	AllowedAlgs      []string `yaml:"allowed_algs"`
	ClientIDClaim    string   `yaml:"client_id_claim"`
	RequiredTokenUse *string  `yaml:"required_token_use"`
	JWKSCacheTTLSec  int      `yaml:"jwks_cache_ttl_sec"`
	MappingTTLSec    int      `yaml:"mapping_cache_ttl_sec"`
	FetchTimeoutMS   int      `yaml:"fetch_timeout_ms"`
	MappingBackend   string   `yaml:"mapping_backend"`
	ClientMapURL     string   `yaml:"client_tenant_map_url"`
	RateLimitMapURL  string   `yaml:"tenant_rate_limit_map_url"`
	RedisURL         string   `yaml:"redis_url"`
	DatabaseURL      string   `yaml:"database_url"`
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	setStr(&c.Env, f.Env)
	setStr(&c.HTTPAddr, f.HTTPAddr)
	setStr(&c.Issuer, f.Issuer)
	setStr(&c.Audience, f.Audience)
	setStr(&c.JWKSURL, f.JWKSURL)
	if len(f.AllowedAlgs) > 0 {
		c.AllowedAlgs = f.AllowedAlgs
	}
	setStr(&c.ClientIDClaim, f.ClientIDClaim)
	if f.RequiredTokenUse != nil { // explicit "" disables the check
		c.RequiredTokenUse = *f.RequiredTokenUse
	}
	if f.JWKSCacheTTLSec > 0 {
		c.JWKSCacheTTL = time.Duration(f.JWKSCacheTTLSec) * time.Second
	}
	if f.MappingTTLSec > 0 {
		c.MappingTTL = time.Duration(f.MappingTTLSec) * time.Second
	}
	if f.FetchTimeoutMS > 0 {
		c.FetchTimeout = time.Duration(f.FetchTimeoutMS) * time.Millisecond
	}
	setStr(&c.MappingBackend, f.MappingBackend)
	setStr(&c.ClientMapURL, f.ClientMapURL)
	setStr(&c.RateLimitMapURL, f.RateLimitMapURL)
	setStr(&c.RedisURL, f.RedisURL)
	setStr(&c.DatabaseURL, f.DatabaseURL)
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envList(k, def string) []string {
	var out []string
	for _, s := range strings.Split(env(k, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
