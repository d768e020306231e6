// Package cache provides the result cache that lets repeated pipeline runs
// skip organizations already classified.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/namecleaner"
	"github.com/meridian-group/orgclassify/internal/store"
)

// ResultCache stores completed classification results keyed by the
// organization's folded comparison form, so spelling variants of an
// already-classified organization hit the same entry.
type ResultCache struct {
	store  store.Store
	maxAge time.Duration
}

// New creates a ResultCache over a store. maxAge bounds entry freshness;
// zero disables the staleness check.
func New(st store.Store, maxAge time.Duration) *ResultCache {
	return &ResultCache{store: st, maxAge: maxAge}
}

// Key derives the cache key for an organization name. Keys are stable
// across runs and insensitive to the cosmetic variation the name cleaner
// folds away.
func Key(name string) string {
	folded := namecleaner.Clean(name).Compare
	sum := md5.Sum([]byte(folded))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for a name, or nil on miss or stale entry.
func (c *ResultCache) Get(ctx context.Context, name string) (*model.OrganizationRecord, error) {
	rec, err := c.store.GetCachedResult(ctx, Key(name), c.maxAge)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: get %q", name)
	}
	if rec != nil {
		zap.L().Debug("cache: hit", zap.String("organization", name))
	}
	return rec, nil
}

// Put stores a completed result. Only terminal successes are worth caching;
// callers should not cache failure states, which are retried on later runs.
func (c *ResultCache) Put(ctx context.Context, rec *model.OrganizationRecord) error {
	if rec.StageStatus != model.StageCompleted {
		return eris.Errorf("cache: refusing to cache non-completed record %q (%s)",
			rec.CanonicalName, rec.StageStatus)
	}
	if err := c.store.SetCachedResult(ctx, Key(rec.CanonicalName), rec); err != nil {
		return eris.Wrapf(err, "cache: put %q", rec.CanonicalName)
	}
	return nil
}

// Evict removes the entry for one organization name, if any. Retries use
// this so a reset record goes through the full pipeline instead of being
// served its old verdict.
func (c *ResultCache) Evict(ctx context.Context, name string) error {
	if err := c.store.DeleteCachedResult(ctx, Key(name)); err != nil {
		return eris.Wrapf(err, "cache: evict %q", name)
	}
	return nil
}

// Stats reports entry count and oldest entry age.
func (c *ResultCache) Stats(ctx context.Context) (*store.CacheStats, error) {
	stats, err := c.store.CacheStats(ctx)
	return stats, eris.Wrap(err, "cache: stats")
}

// PruneStale deletes entries older than the configured max age and returns
// the number removed. With staleness disabled it is a no-op.
func (c *ResultCache) PruneStale(ctx context.Context) (int, error) {
	if c.maxAge == 0 {
		return 0, nil
	}
	n, err := c.store.DeleteStaleResults(ctx, c.maxAge)
	return n, eris.Wrap(err, "cache: prune stale")
}

// Purge removes every cache entry and returns the number removed.
func (c *ResultCache) Purge(ctx context.Context) (int, error) {
	n, err := c.store.PurgeCache(ctx)
	return n, eris.Wrap(err, "cache: purge")
}
