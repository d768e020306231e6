package search

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Probe checks that a candidate URL actually answers before the pipeline
// commits to scraping it.
type Probe struct {
	client    *http.Client
	userAgent string
}

// NewProbe creates a Probe using the given HTTP client.
func NewProbe(client *http.Client, userAgent string) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return &Probe{client: client, userAgent: userAgent}
}

// Reachable issues a HEAD request, falling back to GET for servers that
// reject HEAD. Any 2xx or 3xx answer counts as reachable.
func (p *Probe) Reachable(ctx context.Context, rawURL string) bool {
	if ok, tried := p.attempt(ctx, http.MethodHead, rawURL); tried {
		return ok
	}
	ok, _ := p.attempt(ctx, http.MethodGet, rawURL)
	return ok
}

// attempt returns (reachable, conclusive). A 405 or transport error on HEAD
// is inconclusive and falls through to GET.
func (p *Probe) attempt(ctx context.Context, method, rawURL string) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, true
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if method == http.MethodHead {
			return false, false
		}
		zap.L().Debug("probe: request failed", zap.String("url", rawURL), zap.Error(err))
		return false, true
	}
	defer func() { _ = resp.Body.Close() }()

	if method == http.MethodHead && resp.StatusCode == http.StatusMethodNotAllowed {
		return false, false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 400, true
}
