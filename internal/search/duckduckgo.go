package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/meridian-group/orgclassify/internal/model"
)

// DuckDuckGoBackend scrapes the DuckDuckGo HTML endpoint, which serves
// plain anchors without JavaScript.
type DuckDuckGoBackend struct {
	opts backendOpts
}

// NewDuckDuckGo creates a DuckDuckGo backend.
func NewDuckDuckGo(opts ...Option) *DuckDuckGoBackend {
	return &DuckDuckGoBackend{opts: applyOptions("https://html.duckduckgo.com", opts)}
}

func (d *DuckDuckGoBackend) Name() string               { return "duckduckgo" }
func (d *DuckDuckGoBackend) Method() model.SearchMethod { return model.SearchDuckDuckGo }

func (d *DuckDuckGoBackend) Search(ctx context.Context, orgName string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("q", orgName+" official website")
	searchURL := d.opts.baseURL + "/html/?" + q.Encode()

	doc, err := fetchDocument(ctx, d.opts, d.Name(), searchURL)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := duckduckgoTarget(href)
		if target == "" {
			return true
		}
		out = append(out, Candidate{URL: target, Title: strings.TrimSpace(s.Text())})
		return len(out) < d.opts.maxResults
	})
	return out, nil
}

// duckduckgoTarget unwraps DuckDuckGo's redirect links, which carry the
// destination in the uddg query parameter.
func duckduckgoTarget(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		if uddg := u.Query().Get("uddg"); uddg != "" {
			if strings.HasPrefix(uddg, "http") {
				return uddg
			}
			return ""
		}
		return href
	}
	if strings.HasPrefix(href, "//") {
		return duckduckgoTarget("https:" + href)
	}
	return ""
}
