// Package content validates fetched page text and builds the bounded
// excerpt handed to the classifier.
package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meridian-group/orgclassify/internal/fetch"
)

// QualityError means a page was fetched but its text is unusable for
// classification. It is a permanent outcome for the record.
type QualityError struct {
	URL    string
	Reason string
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("content %s: %s", e.URL, e.Reason)
}

// Config bounds excerpt size.
type Config struct {
	// MinLength is the minimum rune count of meaningful text.
	MinLength int
	// MaxLength caps the excerpt handed to the classifier.
	MaxLength int
}

// boilerplatePhrases are stripped before judging whether a page says
// anything. Pages that are nothing but consent banners and footer legalese
// must not be classified.
var boilerplatePhrases = []string{
	"we use cookies",
	"this website uses cookies",
	"accept all cookies",
	"cookie policy",
	"cookie settings",
	"privacy policy",
	"terms of service",
	"terms and conditions",
	"all rights reserved",
	"enable javascript",
	"javascript is disabled",
	"loading...",
	"page not found",
	"404",
	"skip to main content",
	"subscribe to our newsletter",
}

// Build selects, validates, and truncates page text. About text wins over
// the page body when both are usable. The returned source is the page's
// source, unless about text from an in-page section was chosen for a plain
// website page, which reports as about_section.
func Build(page *fetch.Page, cfg Config) (excerpt, source string, err error) {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 50
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 2000
	}

	about := Meaningful(page.AboutText)
	body := Meaningful(page.Text)

	switch {
	case utf8.RuneCountInString(about) >= cfg.MinLength:
		source = page.Source
		if source == "website" {
			source = "about_section"
		}
		return truncate(about, cfg.MaxLength), source, nil
	case utf8.RuneCountInString(body) >= cfg.MinLength:
		return truncate(body, cfg.MaxLength), page.Source, nil
	default:
		return "", "", &QualityError{
			URL:    page.URL,
			Reason: fmt.Sprintf("only %d meaningful characters (minimum %d)",
				utf8.RuneCountInString(body), cfg.MinLength),
		}
	}
}

// Meaningful strips boilerplate phrases and collapses whitespace, returning
// what the page actually says.
func Meaningful(text string) string {
	for _, phrase := range boilerplatePhrases {
		for {
			idx := strings.Index(asciiLower(text), phrase)
			if idx < 0 {
				break
			}
			text = text[:idx] + " " + text[idx+len(phrase):]
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// asciiLower lowercases ASCII letters only, keeping byte offsets aligned
// with the original string.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// truncate cuts text to at most max runes, backing up to the last word
// boundary so the excerpt never ends mid-word.
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	cut := runes[:max]
	if idx := strings.LastIndexByte(string(cut), ' '); idx > 0 {
		return strings.TrimSpace(string(cut)[:idx])
	}
	return strings.TrimSpace(string(cut))
}
