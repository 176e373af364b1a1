// internal/mapping/fetcher.go
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPFetcher reads a snapshot document (flat JSON object of string to
// string) from a URL. This is the default backend: the provisioning process
// publishes both maps as full-replace documents.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot fetch: %s returned %d", f.url, resp.StatusCode)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return snap, nil
}

// StaticFetcher serves a fixed snapshot. Used for dev bring-up from an env
// seed and for tests.
type StaticFetcher struct{ Data Snapshot }

func (f StaticFetcher) Fetch(context.Context) (Snapshot, error) {
	return f.Data, nil
}

// ParseSeed decodes a snapshot from its JSON document form.
func ParseSeed(doc []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}
