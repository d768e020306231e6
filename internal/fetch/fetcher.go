// Package fetch retrieves organization web pages and extracts the text the
// classifier will read.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/resilience"
)

// Page is the extracted content of one organization website.
type Page struct {
	URL   string
	Title string

	// Text is the page's full visible text.
	Text string

	// AboutText holds text from an about section or linked about page,
	// when one was found. It is preferred over Text downstream because
	// self-descriptions classify far better than navigation and news.
	AboutText string

	// Source records where the text came from: website, about_page, or
	// wikipedia.
	Source string
}

// FetchError wraps a failure to retrieve a page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config controls fetcher behavior.
type Config struct {
	Timeout        time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	FollowAboutNav bool
	Retry          resilience.RetryConfig
}

// Fetcher retrieves pages over HTTP with retry and block detection.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New creates a Fetcher. A nil client gets a default with the configured
// timeout.
func New(client *http.Client, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 512 * 1024
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{client: client, cfg: cfg}
}

// Fetch retrieves a URL and extracts its text. Wikipedia articles get
// article-body extraction; other sites get about-section prioritization,
// optionally following one about nav link.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	body, err := resilience.DoVal(ctx, f.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}

	page, err := extractPage(rawURL, body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if page.AboutText == "" && f.cfg.FollowAboutNav && page.Source != "wikipedia" {
		f.followAboutLink(ctx, page, body)
	}

	return page, nil
}

// get performs a single GET attempt; retryable statuses and blocks come
// back transient so the retry loop can take another pass.
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "create request")}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: eris.Wrap(err, "read body")}
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        eris.Errorf("blocked (%s)", kind),
		}
	}

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.Transient(
			&FetchError{URL: rawURL, StatusCode: resp.StatusCode}, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return body, nil
}

// followAboutLink fetches one about-style nav link and attaches its text.
// Failures here are not fatal; the main page text still stands.
func (f *Fetcher) followAboutLink(ctx context.Context, page *Page, body []byte) {
	aboutURL := findAboutLink(page.URL, bytes.NewReader(body))
	if aboutURL == "" || aboutURL == page.URL {
		return
	}

	aboutBody, err := f.get(ctx, aboutURL)
	if err != nil {
		zap.L().Debug("fetch: about page failed",
			zap.String("url", aboutURL), zap.Error(err))
		return
	}

	aboutPage, err := extractPage(aboutURL, aboutBody)
	if err != nil || aboutPage.Text == "" {
		return
	}

	page.AboutText = aboutPage.Text
	page.Source = "about_page"
}
