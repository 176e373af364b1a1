// internal/mapping/resolver.go
package mapping

import (
	"context"
	"fmt"

	"tollgate/internal/decision"
)

// Resolver walks the two levels of tenant indirection: client identifier to
// tenant, then tenant to the opaque key the gateway uses to pick a usage
// tier. Both legs are backed by independently cached snapshots.
type Resolver struct {
	clients *Store // client id -> tenant id
	limits  *Store // tenant id -> rate limit key
}

func NewResolver(clients, limits *Store) *Resolver {
	return &Resolver{clients: clients, limits: limits}
}

// ResolveTenant maps a verified client id to its tenant. A valid token whose
// client has no mapping is denied: the client was deprovisioned, or the
// credential was forged against another pool.
func (r *Resolver) ResolveTenant(ctx context.Context, clientID string) (string, error) {
	tenant, ok, err := r.clients.Lookup(ctx, clientID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", decision.Denied(decision.ReasonUnknownClient, fmt.Errorf("no tenant mapping for client %q", clientID))
	}
	return tenant, nil
}

// ResolveRateLimitKey maps a tenant to its rate-limit key. A resolved tenant
// with no key is a provisioning inconsistency, not an attack.
func (r *Resolver) ResolveRateLimitKey(ctx context.Context, tenantID string) (string, error) {
	key, ok, err := r.limits.Lookup(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", decision.Denied(decision.ReasonUnknownTenant, fmt.Errorf("no rate limit key for tenant %q", tenantID))
	}
	return key, nil
}
