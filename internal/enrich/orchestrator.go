// Package enrich drives each organization record through the enrichment
// state machine: website search, content fetch, validation, classification.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/cache"
	"github.com/meridian-group/orgclassify/internal/content"
	"github.com/meridian-group/orgclassify/internal/fetch"
	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/registry"
	"github.com/meridian-group/orgclassify/internal/search"
)

// WebsiteLocator finds an organization's official website.
type WebsiteLocator interface {
	Locate(ctx context.Context, orgName string) (*search.Result, error)
}

// PageFetcher retrieves and extracts a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// SectorClassifier decides whether an organization is an insurance company.
type SectorClassifier interface {
	IsInsurance(ctx context.Context, orgName, excerpt string) (bool, error)
}

// Orchestrator owns the state machine. It is safe for concurrent use; each
// record is processed by exactly one worker.
type Orchestrator struct {
	registry   *registry.Registry
	cache      *cache.ResultCache
	locator    WebsiteLocator
	fetcher    PageFetcher
	classifier SectorClassifier
	contentCfg content.Config
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	reg *registry.Registry,
	rc *cache.ResultCache,
	locator WebsiteLocator,
	fetcher PageFetcher,
	classifier SectorClassifier,
	contentCfg content.Config,
) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		cache:      rc,
		locator:    locator,
		fetcher:    fetcher,
		classifier: classifier,
		contentCfg: contentCfg,
	}
}

// Outcome reports what Process did with one record.
type Outcome struct {
	Status   model.StageStatus
	CacheHit bool
}

// Process advances one record from its current state to a terminal state,
// persisting after every stage transition so an interrupted run resumes
// mid-record. Stage failures land the record in the matching failure state;
// only infrastructure errors (persistence, cancellation) are returned.
func (o *Orchestrator) Process(ctx context.Context, rec *model.OrganizationRecord) (*Outcome, error) {
	log := zap.L().With(zap.String("organization", rec.CanonicalName))

	if rec.StageStatus.IsTerminal() {
		return &Outcome{Status: rec.StageStatus}, nil
	}

	// Cache short-circuit: a fresh cached result skips every stage.
	if rec.StageStatus == model.StagePending {
		hit, err := o.cache.Get(ctx, rec.CanonicalName)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			o.applyCached(rec, hit)
			if err := o.registry.Save(ctx, rec); err != nil {
				return nil, err
			}
			log.Info("enrich: served from cache")
			return &Outcome{Status: rec.StageStatus, CacheHit: true}, nil
		}
		rec.StageStatus = model.StageWebsiteSearch
	}

	// page carries fetched content from the fetch stage to validation
	// within this call; a resumed record refetches.
	var page *fetch.Page

	for !rec.StageStatus.IsTerminal() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var err error
		switch rec.StageStatus {
		case model.StageWebsiteSearch:
			err = o.stageWebsiteSearch(ctx, rec)
		case model.StageContentFetch:
			page, err = o.stageContentFetch(ctx, rec)
		case model.StageContentValidate:
			err = o.stageContentValidate(ctx, rec, &page)
		case model.StageClassify:
			err = o.stageClassify(ctx, rec)
		default:
			return nil, eris.Errorf("enrich: unknown stage %q for %q",
				rec.StageStatus, rec.CanonicalName)
		}
		if err != nil {
			return nil, err
		}
		if err := o.registry.Save(ctx, rec); err != nil {
			return nil, err
		}
	}

	if rec.StageStatus == model.StageCompleted {
		if err := o.cache.Put(ctx, rec); err != nil {
			// A cache write failure costs a future lookup, not this result.
			log.Warn("enrich: cache write failed", zap.Error(err))
		}
	}

	log.Info("enrich: record finished",
		zap.String("status", string(rec.StageStatus)),
	)
	return &Outcome{Status: rec.StageStatus}, nil
}

func (o *Orchestrator) stageWebsiteSearch(ctx context.Context, rec *model.OrganizationRecord) error {
	done := o.timeStage(rec, "website_search")
	defer done()

	res, err := o.locator.Locate(ctx, rec.CanonicalName)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		var nf *search.NotFoundError
		if !errors.As(err, &nf) {
			zap.L().Warn("enrich: website search errored",
				zap.String("organization", rec.CanonicalName), zap.Error(err))
		}
		o.fail(rec, model.StageWebsiteNotFound, "website_search", err)
		return nil
	}

	rec.WebsiteURL = res.URL
	rec.SearchMethod = res.Method
	rec.StageStatus = model.StageContentFetch
	return nil
}

func (o *Orchestrator) stageContentFetch(ctx context.Context, rec *model.OrganizationRecord) (*fetch.Page, error) {
	done := o.timeStage(rec, "content_fetch")
	defer done()

	page, err := o.fetcher.Fetch(ctx, rec.WebsiteURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		o.fail(rec, model.StageScrapingFailed, "content_fetch", err)
		return nil, nil
	}

	rec.StageStatus = model.StageContentValidate
	return page, nil
}

func (o *Orchestrator) stageContentValidate(ctx context.Context, rec *model.OrganizationRecord, page **fetch.Page) error {
	done := o.timeStage(rec, "content_validate")
	defer done()

	if *page == nil {
		// Resuming a run that died between fetch and validate: refetch.
		p, err := o.fetcher.Fetch(ctx, rec.WebsiteURL)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			o.fail(rec, model.StageScrapingFailed, "content_validate", err)
			return nil
		}
		*page = p
	}

	excerpt, source, err := content.Build(*page, o.contentCfg)
	if err != nil {
		o.fail(rec, model.StageScrapingFailed, "content_validate", err)
		return nil
	}

	rec.ContentExcerpt = excerpt
	rec.ContentSource = source
	rec.StageStatus = model.StageClassify
	return nil
}

func (o *Orchestrator) stageClassify(ctx context.Context, rec *model.OrganizationRecord) error {
	done := o.timeStage(rec, "classify")
	defer done()

	verdict, err := o.classifier.IsInsurance(ctx, rec.CanonicalName, rec.ContentExcerpt)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		o.fail(rec, model.StageClassificationFailed, "classify", err)
		return nil
	}

	rec.IsInsurance = &verdict
	rec.ErrorMessage = ""
	rec.ErrorStage = ""
	rec.StageStatus = model.StageCompleted
	return nil
}

// fail parks a record in a terminal failure state with the error recorded.
func (o *Orchestrator) fail(rec *model.OrganizationRecord, status model.StageStatus, stage string, err error) {
	rec.StageStatus = status
	rec.ErrorStage = stage
	rec.ErrorMessage = err.Error()
	zap.L().Info("enrich: record failed stage",
		zap.String("organization", rec.CanonicalName),
		zap.String("stage", stage),
		zap.String("status", string(status)),
		zap.Error(err),
	)
}

// timeStage accumulates per-stage wall time in the record.
func (o *Orchestrator) timeStage(rec *model.OrganizationRecord, stage string) func() {
	start := time.Now()
	return func() {
		if rec.StageDurations == nil {
			rec.StageDurations = make(map[string]int64)
		}
		rec.StageDurations[stage] += time.Since(start).Milliseconds()
	}
}

// applyCached copies a cached verdict onto a live record, keeping the
// record's own identity fields.
func (o *Orchestrator) applyCached(rec, cached *model.OrganizationRecord) {
	rec.WebsiteURL = cached.WebsiteURL
	rec.SearchMethod = cached.SearchMethod
	rec.ContentExcerpt = cached.ContentExcerpt
	rec.ContentSource = cached.ContentSource
	rec.IsInsurance = cached.IsInsurance
	rec.StageStatus = model.StageCompleted
	rec.ErrorMessage = ""
	rec.ErrorStage = ""
}
