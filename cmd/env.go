package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridian-group/orgclassify/internal/cache"
	"github.com/meridian-group/orgclassify/internal/classify"
	"github.com/meridian-group/orgclassify/internal/content"
	"github.com/meridian-group/orgclassify/internal/enrich"
	"github.com/meridian-group/orgclassify/internal/fetch"
	"github.com/meridian-group/orgclassify/internal/registry"
	"github.com/meridian-group/orgclassify/internal/resilience"
	"github.com/meridian-group/orgclassify/internal/resolver"
	"github.com/meridian-group/orgclassify/internal/search"
	"github.com/meridian-group/orgclassify/internal/store"
	"github.com/meridian-group/orgclassify/pkg/anthropic"
)

// env bundles the wired pipeline components a command needs. Commands that
// only read the store use initStore directly and skip the client setup.
type env struct {
	Store     store.Store
	Registry  *registry.Registry
	Cache     *cache.ResultCache
	Waterfall *search.Waterfall
	Runner    *enrich.Runner
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline wires the full enrichment pipeline from configuration.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := registry.New(st)
	rc := cache.New(st, cfg.Cache.MaxAge())

	backends, err := search.FromNames(cfg.Search.Backends,
		search.WithUserAgent(cfg.Search.UserAgent),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init search backends")
	}
	waterfall := search.NewWaterfall(
		backends,
		resilience.NewBackendBreakers(resilience.DefaultCircuitConfig()),
		search.NewFilter(),
		search.NewProbe(nil, cfg.Search.UserAgent),
	)

	fetcher := fetch.New(nil, fetch.Config{
		Timeout:        time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		UserAgent:      cfg.Fetch.UserAgent,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		FollowAboutNav: cfg.Fetch.FollowAboutNav,
		Retry:          resilience.Retry(cfg.Fetch.MaxAttempts, cfg.Fetch.BackoffBaseMS),
	})

	classifier := classify.New(anthropic.NewClient(cfg.Classify.APIKey), classify.Config{
		Model:           cfg.Classify.Model,
		MaxTokens:       cfg.Classify.MaxTokens,
		Temperature:     cfg.Classify.Temperature,
		MinContentRunes: cfg.Classify.MinContentRunes,
		RateInterval:    cfg.Classify.RateInterval(),
		Retry:           resilience.Retry(cfg.Classify.MaxAttempts, cfg.Classify.BackoffBaseMS),
	})

	orch := enrich.NewOrchestrator(reg, rc, waterfall, fetcher, classifier, contentConfig())
	runner := enrich.NewRunner(orch, reg, st, cfg.Batch.Workers)

	return &env{
		Store:     st,
		Registry:  reg,
		Cache:     rc,
		Waterfall: waterfall,
		Runner:    runner,
	}, nil
}

func contentConfig() content.Config {
	return content.Config{
		MinLength: cfg.Content.MinLength,
		MaxLength: cfg.Content.MaxLength,
	}
}

// newResolver builds the name resolver, loading custom conflict rules when
// configured.
func newResolver() (*resolver.Resolver, error) {
	rules := resolver.DefaultRuleSet()
	if cfg.Resolver.RulesPath != "" {
		loaded, err := resolver.LoadRuleSet(cfg.Resolver.RulesPath)
		if err != nil {
			return nil, eris.Wrap(err, "load resolver rules")
		}
		rules = loaded
	}
	return resolver.New(resolver.Config{
		SimilarityThreshold: cfg.Resolver.SimilarityThreshold,
		MinWordOverlap:      cfg.Resolver.MinWordOverlap,
	}, rules, rules.Predicate()), nil
}
