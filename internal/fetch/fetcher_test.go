package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/orgclassify/internal/resilience"
)

func fastFetcher(client *http.Client, followAbout bool) *Fetcher {
	return New(client, Config{
		Timeout:        5 * time.Second,
		UserAgent:      "test-agent",
		FollowAboutNav: followAbout,
		Retry: resilience.RetryConfig{
			MaxAttempts: 2,
			BackoffBase: time.Millisecond,
			MaxBackoff:  5 * time.Millisecond,
		},
	})
}

func TestFetch_ExtractsTitleAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><title>Allianz — Home</title></head>
			<body><main><p>Allianz is a global financial services company.</p></main>
			<script>var tracking = true;</script></body></html>`))
	}))
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Allianz — Home", page.Title)
	assert.Contains(t, page.Text, "global financial services")
	assert.NotContains(t, page.Text, "tracking")
	assert.Equal(t, "website", page.Source)
}

func TestFetch_PrefersInPageAboutSection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>
			<nav>Products Claims Contact</nav>
			<section id="about">` +
			`Acme Insurance has protected families since 1920, offering life, ` +
			`home, and automotive coverage across twelve countries with a focus ` +
			`on long-term customer relationships.` +
			`</section>
			<footer>© Acme</footer></body></html>`))
	}))
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.AboutText, "protected families since 1920")
}

func TestFetch_FollowsAboutNavLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>
			<nav><a href="/about-us">About us</a></nav>
			<p>Welcome to Acme.</p></body></html>`))
	})
	mux.HandleFunc("/about-us", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>Acme underwrites specialty insurance.</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), true).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.AboutText, "underwrites specialty insurance")
	assert.Equal(t, "about_page", page.Source)
}

func TestFetch_AboutLinkFailureKeepsMainText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/about">About</a>
			<p>Main page content survives.</p></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), true).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "Main page content survives")
	assert.Empty(t, page.AboutText)
	assert.Equal(t, "website", page.Source)
}

func TestFetch_WikipediaLeadParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><div id="mw-content-text">
			<p>Allianz SE is a German multinational financial services company.</p>
			<p>Its core businesses are insurance and asset management.</p>
			</div></body></html>`))
	}))
	defer srv.Close()

	body, err := fastFetcher(srv.Client(), false).get(context.Background(), srv.URL)
	require.NoError(t, err)

	page, err := extractPage("https://en.wikipedia.org/wiki/Allianz", body)
	require.NoError(t, err)
	assert.Equal(t, "wikipedia", page.Source)
	assert.Contains(t, page.Text, "German multinational financial services")
	assert.Contains(t, page.Text, "asset management")
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<html><body><p>Recovered content here.</p></body></html>`))
	}))
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, page.Text, "Recovered content")
}

func TestFetch_PermanentStatusFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetch_BlockedPageIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>Checking your browser before accessing.</body></html>`))
	}))
	defer srv.Close()

	_, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestFetch_MetaDescriptionFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head>
			<meta name="description" content="Acme Insurance underwrites specialty marine risks.">
			</head><body><div id="app"></div><script>render()</script></body></html>`))
	}))
	defer srv.Close()

	page, err := fastFetcher(srv.Client(), false).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "underwrites specialty marine risks")
}
