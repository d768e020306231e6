// Package registry maintains the canonical organization records the
// enrichment pipeline operates on.
package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/resolver"
	"github.com/meridian-group/orgclassify/internal/store"
)

// Registry is the store-backed collection of canonical organization records.
type Registry struct {
	store store.Store
}

// New creates a Registry over a store.
func New(st store.Store) *Registry {
	return &Registry{store: st}
}

// Materialize turns a resolved name set into canonical records. New
// canonicals get a pending record; existing records keep their enrichment
// state and have their occurrence count refreshed from the latest input.
// Returns the number of records created and the number already present.
func (r *Registry) Materialize(ctx context.Context, names []resolver.NameCount, mapping resolver.Mapping) (created, existing int, err error) {
	// Aggregate raw-row counts per canonical, preserving first-seen order.
	counts := make(map[string]int)
	var order []string
	for _, nc := range names {
		canonical := mapping.Canonical(nc.Raw)
		if canonical == "" {
			continue
		}
		if _, seen := counts[canonical]; !seen {
			order = append(order, canonical)
		}
		counts[canonical] += nc.Count
	}

	for _, canonical := range order {
		rec, err := r.store.GetRecord(ctx, canonical)
		if err != nil {
			return created, existing, eris.Wrapf(err, "registry: lookup %q", canonical)
		}
		if rec == nil {
			rec = model.NewRecord(canonical, counts[canonical])
			created++
		} else {
			rec.OccurrenceCount = counts[canonical]
			rec.Touch()
			existing++
		}
		if err := r.store.UpsertRecord(ctx, rec); err != nil {
			return created, existing, eris.Wrapf(err, "registry: upsert %q", canonical)
		}
	}

	zap.L().Info("registry: materialized records",
		zap.Int("created", created),
		zap.Int("existing", existing),
	)
	return created, existing, nil
}

// Get returns the record for a canonical name, or nil when absent.
func (r *Registry) Get(ctx context.Context, canonicalName string) (*model.OrganizationRecord, error) {
	return r.store.GetRecord(ctx, canonicalName)
}

// Save persists a record.
func (r *Registry) Save(ctx context.Context, rec *model.OrganizationRecord) error {
	rec.Touch()
	return r.store.UpsertRecord(ctx, rec)
}

// Pending returns every record in a non-terminal state. This is the work
// queue for a run: terminal records are skipped, which is what makes an
// interrupted batch resumable.
func (r *Registry) Pending(ctx context.Context) ([]model.OrganizationRecord, error) {
	all, err := r.store.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "registry: list records")
	}
	pending := all[:0:0]
	for _, rec := range all {
		if !rec.StageStatus.IsTerminal() {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// ByStatus returns records in the given state.
func (r *Registry) ByStatus(ctx context.Context, status model.StageStatus) ([]model.OrganizationRecord, error) {
	return r.store.ListRecords(ctx, store.RecordFilter{Status: status})
}

// All returns every record.
func (r *Registry) All(ctx context.Context) ([]model.OrganizationRecord, error) {
	return r.store.ListRecords(ctx, store.RecordFilter{})
}

// Reset moves a record back to pending, clearing error fields and stale
// enrichment data so the state machine starts over from website search.
func (r *Registry) Reset(ctx context.Context, canonicalName string) error {
	rec, err := r.store.GetRecord(ctx, canonicalName)
	if err != nil {
		return eris.Wrapf(err, "registry: lookup %q", canonicalName)
	}
	if rec == nil {
		return eris.Errorf("registry: record not found: %s", canonicalName)
	}

	rec.StageStatus = model.StagePending
	rec.WebsiteURL = ""
	rec.SearchMethod = model.SearchNone
	rec.ContentExcerpt = ""
	rec.ContentSource = ""
	rec.IsInsurance = nil
	rec.ErrorMessage = ""
	rec.ErrorStage = ""
	rec.StageDurations = make(map[string]int64)
	rec.Touch()

	return eris.Wrapf(r.store.UpsertRecord(ctx, rec), "registry: reset %q", canonicalName)
}

// Summary aggregates terminal-state counts across all records.
func (r *Registry) Summary(ctx context.Context) (*model.Summary, error) {
	all, err := r.store.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "registry: list records")
	}

	s := &model.Summary{Total: len(all)}
	for _, rec := range all {
		switch rec.StageStatus {
		case model.StageCompleted:
			s.Completed++
			if rec.IsInsurance != nil {
				if *rec.IsInsurance {
					s.Insurance++
				} else {
					s.NonInsurance++
				}
			}
		case model.StageWebsiteNotFound:
			s.WebsiteNotFound++
		case model.StageScrapingFailed:
			s.ScrapingFailed++
		case model.StageClassificationFailed:
			s.ClassificationFailed++
		}
	}
	return s, nil
}
