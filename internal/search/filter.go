package search

import (
	"net/url"
	"strings"
)

// irrelevantDomains are aggregators, social networks, and reference sites
// that search engines rank highly but that are never an organization's own
// website.
var irrelevantDomains = []string{
	"facebook.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"youtube.com",
	"google.com",
	"amazon.com",
	"wikipedia.org",
	"wikidata.org",
	"bloomberg.com",
	"reuters.com",
	"crunchbase.com",
	"glassdoor.com",
	"indeed.com",
	"yelp.com",
	"tripadvisor.com",
	"yellowpages.com",
	"dnb.com",
	"zoominfo.com",
}

// suspiciousSubdomains mark proxied or cached copies rather than the site
// itself.
var suspiciousSubdomains = []string{
	"translate.",
	"webcache.",
	"cached.",
	"cache.",
	"archive.",
}

// badPathPatterns are URL shapes that point at search or listing pages.
var badPathPatterns = []string{
	"/search?",
	"/search/",
	"?q=",
	"&q=",
	"/q=",
	"/directory/",
	"/listing/",
}

// Filter rejects candidate URLs that cannot plausibly be an organization's
// official website.
type Filter struct {
	extraIrrelevant []string
}

// NewFilter creates a Filter. Additional domains to reject may be supplied
// on top of the built-in list.
func NewFilter(extraIrrelevant ...string) *Filter {
	return &Filter{extraIrrelevant: extraIrrelevant}
}

// Plausible reports whether a URL could be an official organization site.
func (f *Filter) Plausible(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, sub := range suspiciousSubdomains {
		if strings.HasPrefix(host, sub) {
			return false
		}
	}

	for _, d := range irrelevantDomains {
		if hostMatches(host, d) {
			return false
		}
	}
	for _, d := range f.extraIrrelevant {
		if hostMatches(host, strings.ToLower(d)) {
			return false
		}
	}

	full := strings.ToLower(rawURL)
	for _, p := range badPathPatterns {
		if strings.Contains(full, p) {
			return false
		}
	}

	return true
}

// hostMatches reports whether host is domain or a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
