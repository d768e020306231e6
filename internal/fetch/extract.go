package fetch

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// aboutSelectors match in-page about sections, in preference order.
var aboutSelectors = []string{
	"#about", "#about-us", "#aboutus",
	"section.about", "div.about", "div.about-us",
	"[id*='about']", "[class*='about-us']",
}

// extractPage parses HTML and pulls the visible text out.
func extractPage(rawURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()

	page := &Page{
		URL:    rawURL,
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Source: "website",
	}

	if isWikipedia(rawURL) {
		page.Text = wikipediaText(doc)
		page.Source = "wikipedia"
		return page, nil
	}

	for _, sel := range aboutSelectors {
		if text := collapseText(doc.Find(sel).First().Text()); len(text) > 100 {
			page.AboutText = text
			break
		}
	}

	// Drop chrome before collecting the page body.
	doc.Find("nav, header, footer, aside").Remove()
	page.Text = collapseText(doc.Find("body").Text())

	// JS-rendered sites often leave an empty body but a usable meta
	// description.
	if page.Text == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			page.Text = collapseText(desc)
		}
	}

	return page, nil
}

func isWikipedia(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "wikipedia.org")
}

// wikipediaText pulls the article's lead paragraphs, which carry the "X is
// a ..." sentence the classifier needs.
func wikipediaText(doc *goquery.Document) string {
	var sb strings.Builder
	doc.Find("#mw-content-text p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseText(s.Text())
		if text == "" {
			return true
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
		return sb.Len() < 4000
	})
	if sb.Len() == 0 {
		return collapseText(doc.Find("body").Text())
	}
	return sb.String()
}

// findAboutLink scans anchors for an about-style navigation link and
// resolves it against the page URL.
func findAboutLink(pageURL string, r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		label := strings.ToLower(strings.TrimSpace(s.Text()))
		hrefLower := strings.ToLower(href)
		if !looksLikeAbout(label) && !looksLikeAbout(hrefLower) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Hostname() != base.Hostname() {
			return true
		}
		found = resolved.String()
		return false
	})
	return found
}

func looksLikeAbout(s string) bool {
	for _, marker := range []string{"about", "who-we-are", "who we are", "company"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
