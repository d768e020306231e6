package enrich

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/registry"
	"github.com/meridian-group/orgclassify/internal/store"
)

// Runner executes enrichment over all pending records with a bounded worker
// pool, keeping run-level bookkeeping in the store.
type Runner struct {
	orch    *Orchestrator
	reg     *registry.Registry
	store   store.Store
	workers int
}

// NewRunner creates a Runner. workers bounds concurrent records in flight.
func NewRunner(orch *Orchestrator, reg *registry.Registry, st store.Store, workers int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{orch: orch, reg: reg, store: st, workers: workers}
}

// Run processes every non-terminal record. One record's failure never stops
// the others; only context cancellation or store breakage aborts the batch.
// The returned summary reflects the whole registry, not just this run's
// records.
func (r *Runner) Run(ctx context.Context, inputLabel string) (*model.Summary, error) {
	run, err := r.store.CreateRun(ctx, inputLabel)
	if err != nil {
		return nil, err
	}

	pending, err := r.reg.Pending(ctx)
	if err != nil {
		return nil, err
	}

	all, err := r.reg.All(ctx)
	if err != nil {
		return nil, err
	}
	skipped := len(all) - len(pending)

	zap.L().Info("enrich: run starting",
		zap.String("run_id", run.ID),
		zap.String("input", inputLabel),
		zap.Int("pending", len(pending)),
		zap.Int("skipped_terminal", skipped),
		zap.Int("workers", r.workers),
	)

	var cacheHits, processed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range pending {
		rec := pending[i]
		g.Go(func() error {
			outcome, err := r.orch.Process(gCtx, &rec)
			if err != nil {
				if gCtx.Err() != nil {
					return err
				}
				// Infrastructure error on one record: log and keep the
				// batch alive.
				zap.L().Error("enrich: record processing error",
					zap.String("organization", rec.CanonicalName),
					zap.Error(err),
				)
				return nil
			}
			processed.Add(1)
			if outcome.CacheHit {
				cacheHits.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "enrich: run aborted")
	}

	summary, err := r.reg.Summary(ctx)
	if err != nil {
		return nil, err
	}
	summary.CacheHits = int(cacheHits.Load())
	summary.Skipped = skipped

	if err := r.store.FinishRun(ctx, run.ID, summary); err != nil {
		return nil, err
	}

	zap.L().Info("enrich: run finished",
		zap.String("run_id", run.ID),
		zap.Int64("processed", processed.Load()),
		zap.Int("completed", summary.Completed),
		zap.Int("insurance", summary.Insurance),
		zap.Int("website_not_found", summary.WebsiteNotFound),
		zap.Int("scraping_failed", summary.ScrapingFailed),
		zap.Int("classification_failed", summary.ClassificationFailed),
		zap.Int("cache_hits", summary.CacheHits),
	)

	return summary, nil
}

// Retry resets one failed record and processes it immediately.
func (r *Runner) Retry(ctx context.Context, canonicalName string) (*model.OrganizationRecord, error) {
	rec, err := r.reg.Get(ctx, canonicalName)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, eris.Errorf("enrich: record not found: %s", canonicalName)
	}
	if !rec.StageStatus.IsFailure() {
		return nil, eris.Errorf("enrich: record %q is %s, only failed records can be retried",
			canonicalName, rec.StageStatus)
	}

	if err := r.reg.Reset(ctx, canonicalName); err != nil {
		return nil, err
	}
	// Drop any cached verdict so the record runs every stage again.
	if err := r.orch.cache.Evict(ctx, canonicalName); err != nil {
		return nil, err
	}
	rec, err = r.reg.Get(ctx, canonicalName)
	if err != nil {
		return nil, err
	}

	if _, err := r.orch.Process(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RetryAllFailed resets and reprocesses every failed record, returning how
// many were attempted.
func (r *Runner) RetryAllFailed(ctx context.Context) (int, error) {
	var names []string
	for _, status := range []model.StageStatus{
		model.StageWebsiteNotFound,
		model.StageScrapingFailed,
		model.StageClassificationFailed,
	} {
		recs, err := r.reg.ByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		for _, rec := range recs {
			names = append(names, rec.CanonicalName)
		}
	}

	for _, name := range names {
		if err := r.reg.Reset(ctx, name); err != nil {
			return 0, err
		}
		if err := r.orch.cache.Evict(ctx, name); err != nil {
			return 0, err
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, name := range names {
		g.Go(func() error {
			rec, err := r.reg.Get(gCtx, name)
			if err != nil || rec == nil {
				return err
			}
			if _, err := r.orch.Process(gCtx, rec); err != nil && gCtx.Err() != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, eris.Wrap(err, "enrich: retry run aborted")
	}
	return len(names), nil
}
