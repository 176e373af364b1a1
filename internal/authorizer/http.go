// internal/authorizer/http.go
package authorizer

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/decision"
	"tollgate/pkg/problems"
)

// RegisterHTTP mounts the authorizer contract.
// POST /v1/authorize  body: { authorization_header, method, resource_path }
//
// Deny is still HTTP 200: the decision is the payload. The front door owns
// the translation of deny reasons into 401/403 toward the client.
func RegisterHTTP(r chi.Router, svc *Service) {
	r.Post("/v1/authorize", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			AuthorizationHeader string `json:"authorization_header"`
			Method              string `json:"method"`
			ResourcePath        string `json:"resource_path"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":   problems.Type("invalid-authorize-request"),
				"title":  "Invalid authorize request",
				"detail": "Body must be a JSON object with authorization_header, method and resource_path",
			})
			return
		}
		d := svc.Authorize(req.Context(), Request{
			AuthorizationHeader: body.AuthorizationHeader,
			Method:              body.Method,
			ResourcePath:        body.ResourcePath,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toWire(d))
	})
}

// wireDecision is the contract shape. principal_id is an explicit null when
// no client identity was established before the deny.
type wireDecision struct {
	Effect       string            `json:"effect"`
	PrincipalID  *string           `json:"principal_id"`
	RateLimitKey string            `json:"rate_limit_key,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Context      *decision.Context `json:"context,omitempty"`
}

func toWire(d decision.Decision) wireDecision {
	out := wireDecision{
		Effect:       string(d.Effect),
		RateLimitKey: d.RateLimitKey,
		Reason:       string(d.Reason),
		Context:      d.Context,
	}
	if d.PrincipalID != "" {
		p := d.PrincipalID
		out.PrincipalID = &p
	}
	return out
}
