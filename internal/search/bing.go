package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/meridian-group/orgclassify/internal/model"
)

// BingBackend scrapes Bing's search results.
type BingBackend struct {
	opts backendOpts
}

// NewBing creates a Bing backend.
func NewBing(opts ...Option) *BingBackend {
	return &BingBackend{opts: applyOptions("https://www.bing.com", opts)}
}

func (b *BingBackend) Name() string               { return "bing" }
func (b *BingBackend) Method() model.SearchMethod { return model.SearchBing }

func (b *BingBackend) Search(ctx context.Context, orgName string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("q", orgName+" official website")
	searchURL := b.opts.baseURL + "/search?" + q.Encode()

	doc, err := fetchDocument(ctx, b.opts, b.Name(), searchURL)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("li.b_algo h2 a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		out = append(out, Candidate{URL: href, Title: strings.TrimSpace(s.Text())})
		return len(out) < b.opts.maxResults
	})
	return out, nil
}
