package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http", cfg.MappingBackend)
	assert.Equal(t, "access", cfg.RequiredTokenUse)
	assert.Equal(t, "client_id || sub", cfg.ClientIDClaim)
	assert.Equal(t, 15*time.Minute, cfg.JWKSCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.MappingTTL)
	assert.Equal(t, 300*time.Millisecond, cfg.FetchTimeout)
	assert.Contains(t, cfg.AllowedAlgs, "RS256")
	assert.NotContains(t, cfg.AllowedAlgs, "HS256")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OIDC_ISSUER", "https://idp.example.com")
	t.Setenv("MAPPING_CACHE_TTL_SEC", "30")
	t.Setenv("ALLOWED_ALGS", "RS256, ES256")

	cfg := Load()
	assert.Equal(t, "https://idp.example.com", cfg.Issuer)
	assert.Equal(t, 30*time.Second, cfg.MappingTTL)
	assert.Equal(t, []string{"RS256", "ES256"}, cfg.AllowedAlgs)
}

func TestConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tollgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
issuer: https://file.example.com
audience: file-aud
mapping_backend: postgres
mapping_cache_ttl_sec: 45
required_token_use: ""
`), 0o600))
	t.Setenv("TOLLGATE_CONFIG_FILE", path)
	t.Setenv("OIDC_AUDIENCE", "env-aud")

	cfg := Load()
	assert.Equal(t, "https://file.example.com", cfg.Issuer)
	assert.Equal(t, "file-aud", cfg.Audience, "file wins over env")
	assert.Equal(t, "postgres", cfg.MappingBackend)
	assert.Equal(t, 45*time.Second, cfg.MappingTTL)
	assert.Empty(t, cfg.RequiredTokenUse, "explicit empty string disables the check")
	assert.Equal(t, ":8080", cfg.HTTPAddr, "env defaults fill what the file omits")
}
