// internal/decision/decision.go
package decision

import (
	"fmt"

	"github.com/google/uuid"
)

type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Reason identifies why a request was denied. Every deny carries exactly one.
type Reason string

const (
	ReasonMalformedToken       Reason = "MalformedToken"
	ReasonUnsupportedAlgorithm Reason = "UnsupportedAlgorithm"
	ReasonSignatureInvalid     Reason = "SignatureInvalid"
	ReasonTokenExpired         Reason = "TokenExpired"
	ReasonIssuerMismatch       Reason = "IssuerMismatch"
	ReasonAudienceMismatch     Reason = "AudienceMismatch"
	ReasonUnknownClient        Reason = "UnknownClient"
	ReasonUnknownTenant        Reason = "UnknownTenant"
	ReasonKeyFetchError        Reason = "KeyFetchError"
	ReasonStoreUnavailable     Reason = "StoreUnavailable"
)

// SecurityEvent reports whether a deny for this reason should be logged as a
// possible attack rather than an operational failure.
func (r Reason) SecurityEvent() bool {
	return r == ReasonUnsupportedAlgorithm || r == ReasonUnknownClient
}

// Context is forwarded to downstream handlers on allow so they never need to
// re-derive tenant identity from the token.
type Context struct {
	TenantID string `json:"tenant_id"`
}

// Decision is the single output of an authorization pass. Transient: built
// per request and handed straight back to the enforcing gateway.
type Decision struct {
	Effect       Effect   `json:"effect"`
	PrincipalID  string   `json:"principal_id,omitempty"`
	RateLimitKey string   `json:"rate_limit_key,omitempty"`
	Reason       Reason   `json:"reason,omitempty"`
	Context      *Context `json:"context,omitempty"`
}

func (d Decision) Allowed() bool { return d.Effect == EffectAllow }

// principalNS namespaces the v5 UUIDs derived from client ids.
var principalNS = uuid.MustParse("3f1a9c52-7e10-4af6-9d35-0b54d2c2a9e1")

// PrincipalID derives a stable, collision-free principal from a client id.
// The raw client id stays out of gateway logs; correlation still works
// because the derivation is deterministic.
func PrincipalID(clientID string) string {
	return uuid.NewSHA1(principalNS, []byte(clientID)).String()
}

// Allow builds the allow decision for a fully resolved caller.
func Allow(clientID, tenantID, rateLimitKey string) Decision {
	return Decision{
		Effect:       EffectAllow,
		PrincipalID:  PrincipalID(clientID),
		RateLimitKey: rateLimitKey,
		Context:      &Context{TenantID: tenantID},
	}
}

// Deny builds a deny decision. clientID may be empty when the failure
// happened before a client identity was established.
func Deny(reason Reason, clientID string) Decision {
	d := Decision{Effect: EffectDeny, Reason: reason}
	if clientID != "" {
		d.PrincipalID = PrincipalID(clientID)
	}
	return d
}

// Denial is an error that carries the deny reason as data. Components on the
// authorization path return *Denial so the entry point maps failures to
// decisions without inspecting error text.
type Denial struct {
	Reason Reason
	Cause  error
}

func (d *Denial) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %v", d.Reason, d.Cause)
	}
	return string(d.Reason)
}

func (d *Denial) Unwrap() error { return d.Cause }

// Denied wraps cause with a deny reason.
func Denied(reason Reason, cause error) *Denial {
	return &Denial{Reason: reason, Cause: cause}
}
