package enrich

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/orgclassify/internal/cache"
	"github.com/meridian-group/orgclassify/internal/content"
	"github.com/meridian-group/orgclassify/internal/fetch"
	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/registry"
	"github.com/meridian-group/orgclassify/internal/search"
	"github.com/meridian-group/orgclassify/internal/store"
)

// --- stubs ---

type stubLocator struct {
	url    string
	method model.SearchMethod
	err    error
	calls  int
}

func (s *stubLocator) Locate(_ context.Context, orgName string) (*search.Result, error) {
	s.calls++
	if s.err != nil {
		if nf, ok := s.err.(*search.NotFoundError); ok && nf.Organization == "" {
			return nil, &search.NotFoundError{Organization: orgName}
		}
		return nil, s.err
	}
	return &search.Result{URL: s.url, Method: s.method}, nil
}

type stubFetcher struct {
	page  *fetch.Page
	err   error
	calls int
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p := *s.page
	p.URL = url
	return &p, nil
}

type stubClassifier struct {
	verdict bool
	err     error
	calls   int
}

func (s *stubClassifier) IsInsurance(_ context.Context, _, _ string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.verdict, nil
}

// --- fixture ---

type fixture struct {
	orch       *Orchestrator
	reg        *registry.Registry
	cache      *cache.ResultCache
	st         *store.SQLiteStore
	locator    *stubLocator
	fetcher    *stubFetcher
	classifier *stubClassifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "enrich.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{
		st:    st,
		reg:   registry.New(st),
		cache: cache.New(st, time.Hour),
		locator: &stubLocator{
			url:    "https://www.allianz.com/",
			method: model.SearchGoogle,
		},
		fetcher: &stubFetcher{page: &fetch.Page{
			Text:   "Allianz SE is a German multinational insurance and asset management company serving customers worldwide.",
			Source: "website",
		}},
		classifier: &stubClassifier{verdict: true},
	}
	f.orch = NewOrchestrator(f.reg, f.cache, f.locator, f.fetcher, f.classifier,
		content.Config{MinLength: 50, MaxLength: 2000})
	return f
}

func (f *fixture) seed(t *testing.T, name string) *model.OrganizationRecord {
	t.Helper()
	rec := model.NewRecord(name, 1)
	require.NoError(t, f.reg.Save(context.Background(), rec))
	return rec
}

// --- tests ---

func TestProcess_HappyPathToCompleted(t *testing.T) {
	f := newFixture(t)
	rec := f.seed(t, "Allianz SE")

	outcome, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, outcome.Status)
	assert.False(t, outcome.CacheHit)

	got, err := f.reg.Get(context.Background(), "Allianz SE")
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, got.StageStatus)
	assert.Equal(t, "https://www.allianz.com/", got.WebsiteURL)
	assert.Equal(t, model.SearchGoogle, got.SearchMethod)
	assert.Contains(t, got.ContentExcerpt, "insurance and asset management")
	require.NotNil(t, got.IsInsurance)
	assert.True(t, *got.IsInsurance)

	// Every stage left a duration behind.
	for _, stage := range []string{"website_search", "content_fetch", "content_validate", "classify"} {
		assert.Contains(t, got.StageDurations, stage)
	}
}

func TestProcess_CompletedRecordIsCached(t *testing.T) {
	f := newFixture(t)
	rec := f.seed(t, "Allianz SE")

	_, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)

	cached, err := f.cache.Get(context.Background(), "Allianz SE")
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.NotNil(t, cached.IsInsurance)
	assert.True(t, *cached.IsInsurance)
}

func TestProcess_CacheHitSkipsAllStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prior := model.NewRecord("Allianz SE", 1)
	prior.StageStatus = model.StageCompleted
	prior.WebsiteURL = "https://www.allianz.com/"
	prior.SearchMethod = model.SearchDuckDuckGo
	prior.ContentExcerpt = "cached excerpt"
	yes := true
	prior.IsInsurance = &yes
	require.NoError(t, f.cache.Put(ctx, prior))

	rec := f.seed(t, "Allianz SE")
	outcome, err := f.orch.Process(ctx, rec)
	require.NoError(t, err)
	assert.True(t, outcome.CacheHit)
	assert.Equal(t, model.StageCompleted, outcome.Status)

	assert.Zero(t, f.locator.calls)
	assert.Zero(t, f.fetcher.calls)
	assert.Zero(t, f.classifier.calls)

	got, err := f.reg.Get(ctx, "Allianz SE")
	require.NoError(t, err)
	assert.Equal(t, "cached excerpt", got.ContentExcerpt)
	assert.Equal(t, model.SearchDuckDuckGo, got.SearchMethod)
}

func TestProcess_WebsiteNotFound(t *testing.T) {
	f := newFixture(t)
	f.locator.err = &search.NotFoundError{}
	rec := f.seed(t, "Ghost Org")

	outcome, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageWebsiteNotFound, outcome.Status)

	got, _ := f.reg.Get(context.Background(), "Ghost Org")
	assert.Equal(t, "website_search", got.ErrorStage)
	assert.NotEmpty(t, got.ErrorMessage)
	assert.Nil(t, got.IsInsurance)
	assert.Zero(t, f.fetcher.calls)
}

func TestProcess_FetchFailureIsScrapingFailed(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = &fetch.FetchError{URL: "https://www.allianz.com/", StatusCode: 500}
	rec := f.seed(t, "Allianz SE")

	outcome, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageScrapingFailed, outcome.Status)

	got, _ := f.reg.Get(context.Background(), "Allianz SE")
	assert.Equal(t, "content_fetch", got.ErrorStage)
	// The URL survives for diagnosis even though scraping failed.
	assert.Equal(t, "https://www.allianz.com/", got.WebsiteURL)
	assert.Zero(t, f.classifier.calls)
}

func TestProcess_ThinContentIsScrapingFailed(t *testing.T) {
	f := newFixture(t)
	f.fetcher.page = &fetch.Page{Text: "Welcome.", Source: "website"}
	rec := f.seed(t, "Thin Org")

	outcome, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageScrapingFailed, outcome.Status)

	got, _ := f.reg.Get(context.Background(), "Thin Org")
	assert.Equal(t, "content_validate", got.ErrorStage)
}

func TestProcess_ClassifierFailure(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = errors.New("api unavailable after retries")
	rec := f.seed(t, "Allianz SE")

	outcome, err := f.orch.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageClassificationFailed, outcome.Status)

	got, _ := f.reg.Get(context.Background(), "Allianz SE")
	assert.Equal(t, "classify", got.ErrorStage)
	assert.Nil(t, got.IsInsurance)
	// Content is preserved so a retry can skip straight to classification
	// once the record is reset.
	assert.NotEmpty(t, got.ContentExcerpt)
}

func TestProcess_VerdictOnlyOnCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Across every terminal state, IsInsurance is set exactly when the
	// record completed.
	f.locator.err = &search.NotFoundError{}
	rec := f.seed(t, "Ghost Org")
	_, err := f.orch.Process(ctx, rec)
	require.NoError(t, err)

	f2 := newFixture(t)
	rec2 := f2.seed(t, "Allianz SE")
	_, err = f2.orch.Process(ctx, rec2)
	require.NoError(t, err)

	ghost, _ := f.reg.Get(ctx, "Ghost Org")
	done, _ := f2.reg.Get(ctx, "Allianz SE")

	assert.Nil(t, ghost.IsInsurance)
	assert.NotNil(t, done.IsInsurance)
}

func TestProcess_ResumesFromIntermediateState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := model.NewRecord("Resumed Org", 1)
	rec.StageStatus = model.StageContentFetch
	rec.WebsiteURL = "https://www.resumed.example.com/"
	rec.SearchMethod = model.SearchBing
	require.NoError(t, f.reg.Save(ctx, rec))

	outcome, err := f.orch.Process(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, outcome.Status)

	// Search was not repeated.
	assert.Zero(t, f.locator.calls)
	got, _ := f.reg.Get(ctx, "Resumed Org")
	assert.Equal(t, model.SearchBing, got.SearchMethod)
	assert.Equal(t, "https://www.resumed.example.com/", got.WebsiteURL)
}

func TestProcess_ResumeAtValidateRefetches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := model.NewRecord("Mid Org", 1)
	rec.StageStatus = model.StageContentValidate
	rec.WebsiteURL = "https://www.mid.example.com/"
	require.NoError(t, f.reg.Save(ctx, rec))

	outcome, err := f.orch.Process(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, outcome.Status)
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestProcess_TerminalRecordIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := model.NewRecord("Done Org", 1)
	rec.StageStatus = model.StageCompleted
	require.NoError(t, f.reg.Save(ctx, rec))

	outcome, err := f.orch.Process(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, outcome.Status)
	assert.Zero(t, f.locator.calls)
}
