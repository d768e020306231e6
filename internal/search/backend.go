package search

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/meridian-group/orgclassify/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

// Option configures an HTML search backend.
type Option func(*backendOpts)

type backendOpts struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxResults int
}

// WithBaseURL overrides the engine's base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *backendOpts) { o.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *backendOpts) { o.httpClient = c }
}

// WithUserAgent sets the User-Agent sent to the engine.
func WithUserAgent(ua string) Option {
	return func(o *backendOpts) { o.userAgent = ua }
}

// WithMaxResults caps how many hits a backend returns.
func WithMaxResults(n int) Option {
	return func(o *backendOpts) { o.maxResults = n }
}

// FromNames builds backends from config names, preserving order.
func FromNames(names []string, opts ...Option) ([]Backend, error) {
	backends := make([]Backend, 0, len(names))
	for _, n := range names {
		switch n {
		case "google":
			backends = append(backends, NewGoogle(opts...))
		case "duckduckgo":
			backends = append(backends, NewDuckDuckGo(opts...))
		case "bing":
			backends = append(backends, NewBing(opts...))
		default:
			return nil, eris.Errorf("search: unknown backend %q", n)
		}
	}
	if len(backends) == 0 {
		return nil, eris.New("search: no backends configured")
	}
	return backends, nil
}

func applyOptions(defaultBaseURL string, opts []Option) backendOpts {
	o := backendOpts{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent:  defaultUserAgent,
		maxResults: 10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fetchDocument issues the search request and parses the result page.
// Retryable statuses come back as transient errors so the waterfall's
// breaker logic can distinguish engine throttling from a plain failure.
func fetchDocument(ctx context.Context, o backendOpts, name, searchURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", name)
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: fetch", name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.Transient(
			eris.Errorf("%s: status %d", name, resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("%s: status %d", name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse results page", name)
	}
	return doc, nil
}
