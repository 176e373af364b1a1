// internal/authorizer/service.go
package authorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tollgate/internal/decision"
	"tollgate/internal/mapping"
	"tollgate/internal/token"
)

// Request is the raw authorization input handed over by the front door.
// Method and ResourcePath ride along for logs and tracing; the decision
// itself is identity-based.
type Request struct {
	AuthorizationHeader string
	Method              string
	ResourcePath        string
}

// Service is the externally-invoked authorizer. One call, one Decision,
// always — failures become deny decisions, never faults.
type Service struct {
	verifier *token.Verifier
	resolver *mapping.Resolver
	metrics  *Metrics
	log      *zap.SugaredLogger
}

func NewService(v *token.Verifier, r *mapping.Resolver, m *Metrics, log *zap.SugaredLogger) *Service {
	return &Service{verifier: v, resolver: r, metrics: m, log: log}
}

// Authorize runs the linear pipeline: extract token, verify, resolve tenant,
// resolve rate-limit key. The first failing step short-circuits to a deny
// carrying its reason. No step is retried here; each cache retries against
// its own backend as it sees fit.
func (s *Service) Authorize(ctx context.Context, req Request) decision.Decision {
	start := time.Now()
	d, clientID, tenantID := s.authorize(ctx, req)
	s.metrics.Observe(d, time.Since(start))
	s.logDecision(req, d, clientID, tenantID)
	return d
}

func (s *Service) authorize(ctx context.Context, req Request) (decision.Decision, string, string) {
	raw, err := extractBearer(req.AuthorizationHeader)
	if err != nil {
		return decision.Deny(decision.ReasonMalformedToken, ""), "", ""
	}
	claims, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return s.deny(err, ""), "", ""
	}
	tenantID, err := s.resolver.ResolveTenant(ctx, claims.ClientID)
	if err != nil {
		return s.deny(err, claims.ClientID), claims.ClientID, ""
	}
	rateLimitKey, err := s.resolver.ResolveRateLimitKey(ctx, tenantID)
	if err != nil {
		return s.deny(err, claims.ClientID), claims.ClientID, tenantID
	}
	return decision.Allow(claims.ClientID, tenantID, rateLimitKey), claims.ClientID, tenantID
}

func (s *Service) deny(err error, clientID string) decision.Decision {
	var den *decision.Denial
	if !errors.As(err, &den) {
		// Nothing on the pipeline should produce a bare error; if one leaks
		// through, fail closed and treat it as a dependency failure.
		s.log.Errorw("unclassified authorization error", "err", err)
		den = decision.Denied(decision.ReasonStoreUnavailable, err)
	}
	return decision.Deny(den.Reason, clientID)
}

func (s *Service) logDecision(req Request, d decision.Decision, clientID, tenantID string) {
	fields := []any{
		"effect", string(d.Effect),
		"method", req.Method,
		"path", req.ResourcePath,
	}
	if clientID != "" {
		fields = append(fields, "client_id", clientID)
	}
	if tenantID != "" {
		fields = append(fields, "tenant_id", tenantID)
	}
	if d.Allowed() {
		s.log.Infow("authorized", fields...)
		return
	}
	fields = append(fields, "reason", string(d.Reason))
	switch {
	case d.Reason.SecurityEvent():
		s.log.Warnw("denied (security event)", fields...)
	case d.Reason == decision.ReasonUnknownTenant:
		s.log.Warnw("denied (mapping inconsistency)", fields...)
	default:
		s.log.Infow("denied", fields...)
	}
}

func extractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", fmt.Errorf("missing bearer scheme")
	}
	raw := strings.TrimSpace(header[len("bearer "):])
	if raw == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return raw, nil
}
