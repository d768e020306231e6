// Package search discovers official websites for organizations by scraping
// public search engines, with a waterfall across backends and per-backend
// fault isolation.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/resilience"
)

// Candidate is one search hit before filtering.
type Candidate struct {
	URL   string
	Title string
}

// Result is a discovered website along with the backend that produced it.
type Result struct {
	URL    string
	Method model.SearchMethod
}

// Backend turns an organization name into ranked candidate URLs.
type Backend interface {
	Search(ctx context.Context, orgName string) ([]Candidate, error)
	Name() string
	Method() model.SearchMethod
}

// NotFoundError means every backend was tried and no plausible, reachable
// website emerged. It is a permanent outcome, not a transient failure.
type NotFoundError struct {
	Organization string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no website found for %q", e.Organization)
}

// Waterfall tries backends in priority order behind circuit breakers,
// filters their hits, and probe-validates the survivors.
type Waterfall struct {
	backends []Backend
	breakers *resilience.BackendBreakers
	filter   *Filter
	probe    *Probe
}

// NewWaterfall creates a waterfall over the given backends. Backends are
// tried in slice order.
func NewWaterfall(backends []Backend, breakers *resilience.BackendBreakers, filter *Filter, probe *Probe) *Waterfall {
	return &Waterfall{
		backends: backends,
		breakers: breakers,
		filter:   filter,
		probe:    probe,
	}
}

// Locate finds the official website for an organization. A failing backend
// (error or open breaker) falls through to the next one; a backend that
// returns hits but none plausible also falls through. Only when every
// backend is exhausted does the organization count as not found.
func (w *Waterfall) Locate(ctx context.Context, orgName string) (*Result, error) {
	log := zap.L().With(zap.String("organization", orgName))

	for _, b := range w.backends {
		cb := w.breakers.Get(b.Name())
		candidates, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) ([]Candidate, error) {
			return b.Search(ctx, orgName)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Debug("search: backend failed, falling through",
				zap.String("backend", b.Name()), zap.Error(err))
			continue
		}

		for _, c := range candidates {
			if !w.filter.Plausible(c.URL) {
				continue
			}
			if w.probe != nil && !w.probe.Reachable(ctx, c.URL) {
				log.Debug("search: candidate unreachable",
					zap.String("backend", b.Name()), zap.String("url", c.URL))
				continue
			}
			log.Info("search: website found",
				zap.String("backend", b.Name()), zap.String("url", c.URL))
			return &Result{URL: c.URL, Method: b.Method()}, nil
		}

		log.Debug("search: no plausible candidates from backend",
			zap.String("backend", b.Name()), zap.Int("hits", len(candidates)))
	}

	return nil, &NotFoundError{Organization: orgName}
}

// BreakerStates exposes the per-backend circuit states for status output.
func (w *Waterfall) BreakerStates() map[string]resilience.CircuitState {
	return w.breakers.States()
}
