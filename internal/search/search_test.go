package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/resilience"
)

// stubBackend is a scripted Backend for waterfall tests.
type stubBackend struct {
	name       string
	method     model.SearchMethod
	candidates []Candidate
	err        error
	calls      int
}

func (s *stubBackend) Search(_ context.Context, _ string) ([]Candidate, error) {
	s.calls++
	return s.candidates, s.err
}

func (s *stubBackend) Name() string               { return s.name }
func (s *stubBackend) Method() model.SearchMethod { return s.method }

func newTestWaterfall(backends ...Backend) *Waterfall {
	breakers := resilience.NewBackendBreakers(resilience.CircuitConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	// No probe: reachability is exercised separately.
	return NewWaterfall(backends, breakers, NewFilter(), nil)
}

func TestWaterfall_FirstBackendWins(t *testing.T) {
	first := &stubBackend{
		name:       "google",
		method:     model.SearchGoogle,
		candidates: []Candidate{{URL: "https://www.allianz.com/"}},
	}
	second := &stubBackend{name: "bing", method: model.SearchBing}

	res, err := newTestWaterfall(first, second).Locate(context.Background(), "Allianz SE")
	require.NoError(t, err)
	assert.Equal(t, "https://www.allianz.com/", res.URL)
	assert.Equal(t, model.SearchGoogle, res.Method)
	assert.Zero(t, second.calls)
}

func TestWaterfall_FallsThroughOnError(t *testing.T) {
	failing := &stubBackend{
		name:   "google",
		method: model.SearchGoogle,
		err:    errors.New("engine unavailable"),
	}
	working := &stubBackend{
		name:       "duckduckgo",
		method:     model.SearchDuckDuckGo,
		candidates: []Candidate{{URL: "https://www.axa.com/"}},
	}

	res, err := newTestWaterfall(failing, working).Locate(context.Background(), "AXA")
	require.NoError(t, err)
	assert.Equal(t, model.SearchDuckDuckGo, res.Method)
}

func TestWaterfall_FallsThroughOnImplausibleOnly(t *testing.T) {
	social := &stubBackend{
		name:   "google",
		method: model.SearchGoogle,
		candidates: []Candidate{
			{URL: "https://www.facebook.com/acme"},
			{URL: "https://en.wikipedia.org/wiki/Acme"},
		},
	}
	working := &stubBackend{
		name:       "bing",
		method:     model.SearchBing,
		candidates: []Candidate{{URL: "https://www.acme-insurance.com/"}},
	}

	res, err := newTestWaterfall(social, working).Locate(context.Background(), "Acme Insurance")
	require.NoError(t, err)
	assert.Equal(t, "https://www.acme-insurance.com/", res.URL)
}

func TestWaterfall_SkipsImplausibleWithinBackend(t *testing.T) {
	mixed := &stubBackend{
		name:   "google",
		method: model.SearchGoogle,
		candidates: []Candidate{
			{URL: "https://www.linkedin.com/company/acme"},
			{URL: "https://www.acme.com/"},
		},
	}

	res, err := newTestWaterfall(mixed).Locate(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "https://www.acme.com/", res.URL)
}

func TestWaterfall_AllExhaustedIsNotFound(t *testing.T) {
	empty := &stubBackend{name: "google", method: model.SearchGoogle}
	failing := &stubBackend{name: "bing", method: model.SearchBing, err: errors.New("down")}

	_, err := newTestWaterfall(empty, failing).Locate(context.Background(), "Ghost Org")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Ghost Org", nf.Organization)
}

func TestWaterfall_OpenBreakerSkipsBackend(t *testing.T) {
	failing := &stubBackend{
		name:   "google",
		method: model.SearchGoogle,
		err:    resilience.Transient(errors.New("throttled"), 429),
	}
	working := &stubBackend{
		name:       "bing",
		method:     model.SearchBing,
		candidates: []Candidate{{URL: "https://www.generali.com/"}},
	}

	breakers := resilience.NewBackendBreakers(resilience.CircuitConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	w := NewWaterfall([]Backend{failing, working}, breakers, NewFilter(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := w.Locate(ctx, "Generali")
		require.NoError(t, err)
	}

	// Two failures trip the breaker; the third pass never reaches google.
	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, resilience.CircuitOpen, w.BreakerStates()["google"])
}
