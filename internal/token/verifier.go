// internal/token/verifier.go
package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"tollgate/internal/decision"
	"tollgate/internal/keyset"
)

// Claims is the verified subset of the token consumed downstream.
type Claims struct {
	ClientID string
	Subject  string
	Issuer   string
	Expiry   time.Time
	Scopes   []string
	TokenUse string
}

// Options configures claim checks. All values are static per deployment.
type Options struct {
	Issuer           string
	Audience         string
	AllowedAlgs      []string // signature algorithms accepted in the token header
	ClientIDClaim    string   // jmespath expression, e.g. "client_id || sub"
	RequiredTokenUse string   // empty disables the token_use check
}

// Verifier validates bearer tokens against the key material cache.
type Verifier struct {
	keys             *keyset.Cache
	issuer           string
	audience         string
	requiredTokenUse string
	allowed          map[jwa.SignatureAlgorithm]struct{}
	clientClaim      *jmes.JMESPath
	now              func() time.Time
}

func NewVerifier(keys *keyset.Cache, opts Options) (*Verifier, error) {
	expr := opts.ClientIDClaim
	if expr == "" {
		expr = "client_id || sub"
	}
	jp, err := jmes.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("client id claim expression: %w", err)
	}
	allowed := map[jwa.SignatureAlgorithm]struct{}{}
	for _, a := range opts.AllowedAlgs {
		allowed[jwa.SignatureAlgorithm(strings.TrimSpace(a))] = struct{}{}
	}
	return &Verifier{
		keys:             keys,
		issuer:           strings.TrimRight(opts.Issuer, "/"),
		audience:         opts.Audience,
		requiredTokenUse: opts.RequiredTokenUse,
		allowed:          allowed,
		clientClaim:      jp,
		now:              time.Now,
	}, nil
}

func malformed(cause error) *decision.Denial {
	return decision.Denied(decision.ReasonMalformedToken, cause)
}

// Verify checks signature, expiry, issuer and audience, and extracts the
// caller's client identifier. Every failure is a *decision.Denial.
//
// The header is attacker-controlled until the signature checks out, so the
// algorithm allow-list is enforced before any key material is consulted:
// "none" and symmetric schemes never reach a lookup.
func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Count(raw, ".") != 2 {
		return Claims{}, malformed(fmt.Errorf("token is not a three-segment JWS"))
	}
	msg, err := jws.Parse([]byte(raw))
	if err != nil || len(msg.Signatures()) == 0 {
		return Claims{}, malformed(fmt.Errorf("unparseable token: %w", err))
	}
	hdr := msg.Signatures()[0].ProtectedHeaders()

	alg := hdr.Algorithm()
	if _, ok := v.allowed[alg]; !ok {
		return Claims{}, decision.Denied(decision.ReasonUnsupportedAlgorithm, fmt.Errorf("algorithm %q not allowed", alg.String()))
	}
	kid := hdr.KeyID()
	if kid == "" {
		return Claims{}, malformed(fmt.Errorf("token header has no kid"))
	}

	set, err := v.keys.Keys(ctx)
	if err != nil {
		return Claims{}, err
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		// Unknown kid usually means the provider rotated keys. One forced
		// refresh, then give up.
		set, err = v.keys.Refresh(ctx)
		if err != nil {
			return Claims{}, err
		}
		if key, ok = set.LookupKeyID(kid); !ok {
			return Claims{}, decision.Denied(decision.ReasonSignatureInvalid, fmt.Errorf("no key for kid %q after refresh", kid))
		}
	}
	if _, err := jws.Verify([]byte(raw), jws.WithKey(alg, key)); err != nil {
		return Claims{}, decision.Denied(decision.ReasonSignatureInvalid, err)
	}

	// Signature is good; claim checks run on the decoded payload. Validation
	// is done by hand so each failure maps to its own deny reason.
	tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, malformed(err)
	}
	exp := tok.Expiration()
	if exp.IsZero() {
		return Claims{}, malformed(fmt.Errorf("token has no expiry"))
	}
	if !exp.After(v.now()) { // zero leeway
		return Claims{}, decision.Denied(decision.ReasonTokenExpired, fmt.Errorf("expired at %s", exp.UTC().Format(time.RFC3339)))
	}
	if strings.TrimRight(tok.Issuer(), "/") != v.issuer {
		return Claims{}, decision.Denied(decision.ReasonIssuerMismatch, fmt.Errorf("issuer %q", tok.Issuer()))
	}

	all, err := tok.AsMap(ctx)
	if err != nil {
		return Claims{}, malformed(err)
	}
	scopes := scopesOf(all)
	if !containsString(tok.Audience(), v.audience) && !containsString(scopes, v.audience) {
		return Claims{}, decision.Denied(decision.ReasonAudienceMismatch, fmt.Errorf("audience %v", tok.Audience()))
	}
	tokenUse, _ := all["token_use"].(string)
	if v.requiredTokenUse != "" && tokenUse != v.requiredTokenUse {
		// An ID token (or anything else) must not grant API access.
		return Claims{}, decision.Denied(decision.ReasonAudienceMismatch, fmt.Errorf("token_use %q", tokenUse))
	}

	cid := v.extractClientID(all)
	if cid == "" {
		return Claims{}, malformed(fmt.Errorf("client identifier claim missing"))
	}
	return Claims{
		ClientID: cid,
		Subject:  tok.Subject(),
		Issuer:   tok.Issuer(),
		Expiry:   exp,
		Scopes:   scopes,
		TokenUse: tokenUse,
	}, nil
}

func (v *Verifier) extractClientID(claims map[string]any) string {
	out, err := v.clientClaim.Search(claims)
	if err != nil {
		return ""
	}
	s, _ := out.(string)
	return strings.TrimSpace(s)
}

func scopesOf(claims map[string]any) []string {
	if sc, ok := claims["scope"].(string); ok {
		return strings.Fields(sc)
	}
	return nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
