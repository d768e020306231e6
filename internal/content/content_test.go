package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/orgclassify/internal/fetch"
)

var defaultCfg = Config{MinLength: 50, MaxLength: 2000}

func TestBuild_UsesBodyText(t *testing.T) {
	page := &fetch.Page{
		URL:    "https://www.acme.com",
		Text:   "Acme Insurance provides life, home and car coverage to customers in Europe.",
		Source: "website",
	}

	excerpt, source, err := Build(page, defaultCfg)
	require.NoError(t, err)
	assert.Contains(t, excerpt, "life, home and car coverage")
	assert.Equal(t, "website", source)
}

func TestBuild_PrefersAboutText(t *testing.T) {
	page := &fetch.Page{
		URL:       "https://www.acme.com",
		Text:      "Home News Careers Contact and a lot of navigation text that is long enough.",
		AboutText: "Acme Insurance has underwritten specialty risk since 1920 across many markets.",
		Source:    "website",
	}

	excerpt, source, err := Build(page, defaultCfg)
	require.NoError(t, err)
	assert.Contains(t, excerpt, "underwritten specialty risk")
	assert.Equal(t, "about_section", source)
}

func TestBuild_AboutPageSourcePassesThrough(t *testing.T) {
	page := &fetch.Page{
		URL:       "https://www.acme.com",
		AboutText: "Acme Insurance has underwritten specialty risk since 1920 across many markets.",
		Source:    "about_page",
	}

	_, source, err := Build(page, defaultCfg)
	require.NoError(t, err)
	assert.Equal(t, "about_page", source)
}

func TestBuild_TooShortIsQualityError(t *testing.T) {
	page := &fetch.Page{URL: "https://www.acme.com", Text: "Welcome.", Source: "website"}

	_, _, err := Build(page, defaultCfg)
	require.Error(t, err)

	var qe *QualityError
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, qe.Reason, "meaningful characters")
}

func TestBuild_BoilerplateOnlyIsQualityError(t *testing.T) {
	page := &fetch.Page{
		URL: "https://www.acme.com",
		Text: "We use cookies. Accept all cookies. Cookie policy. Privacy policy. " +
			"All rights reserved. Enable JavaScript.",
		Source: "website",
	}

	_, _, err := Build(page, defaultCfg)
	require.Error(t, err)
}

func TestBuild_TruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("insurance services for organizations ", 100)
	page := &fetch.Page{URL: "https://www.acme.com", Text: long, Source: "website"}

	excerpt, _, err := Build(page, Config{MinLength: 50, MaxLength: 200})
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(excerpt), 200)
	assert.False(t, strings.HasSuffix(excerpt, " "))
	// No mid-word cut: the excerpt ends on a complete word.
	last := excerpt[strings.LastIndex(excerpt, " ")+1:]
	assert.Contains(t, []string{"insurance", "services", "for", "organizations"}, last)
}

func TestMeaningful_StripsBoilerplate(t *testing.T) {
	got := Meaningful("We use cookies to improve your experience. Acme insures ships.")
	assert.NotContains(t, strings.ToLower(got), "we use cookies")
	assert.Contains(t, got, "Acme insures ships")
}

func TestMeaningful_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Meaningful("  a\n\tb   c  "))
}
