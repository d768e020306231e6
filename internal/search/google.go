package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/meridian-group/orgclassify/internal/model"
)

// GoogleBackend scrapes Google's HTML search results.
type GoogleBackend struct {
	opts backendOpts
}

// NewGoogle creates a Google backend.
func NewGoogle(opts ...Option) *GoogleBackend {
	return &GoogleBackend{opts: applyOptions("https://www.google.com", opts)}
}

func (g *GoogleBackend) Name() string               { return "google" }
func (g *GoogleBackend) Method() model.SearchMethod { return model.SearchGoogle }

func (g *GoogleBackend) Search(ctx context.Context, orgName string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("q", orgName+" official website")
	q.Set("num", "10")
	searchURL := g.opts.baseURL + "/search?" + q.Encode()

	doc, err := fetchDocument(ctx, g.opts, g.Name(), searchURL)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := googleTarget(href)
		if target == "" {
			return true
		}
		out = append(out, Candidate{URL: target, Title: strings.TrimSpace(s.Text())})
		return len(out) < g.opts.maxResults
	})
	return out, nil
}

// googleTarget extracts the destination URL from a result anchor. Google's
// HTML endpoint wraps destinations as /url?q=<target>; direct http links
// pass through as-is.
func googleTarget(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		target := u.Query().Get("q")
		if strings.HasPrefix(target, "http") {
			return target
		}
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}
