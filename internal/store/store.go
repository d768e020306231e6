package store

import (
	"context"
	"time"

	"github.com/meridian-group/orgclassify/internal/model"
)

// RecordFilter specifies criteria for listing organization records.
type RecordFilter struct {
	Status model.StageStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// CacheStats summarizes the result cache. Oldest is nil when the cache is
// empty.
type CacheStats struct {
	Entries int        `json:"entries"`
	Oldest  *time.Time `json:"oldest,omitempty"`
}

// Store defines the persistence interface for the classification pipeline.
type Store interface {
	// Organizations
	UpsertRecord(ctx context.Context, rec *model.OrganizationRecord) error
	GetRecord(ctx context.Context, canonicalName string) (*model.OrganizationRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.OrganizationRecord, error)
	CountByStatus(ctx context.Context) (map[model.StageStatus]int, error)

	// Result cache
	GetCachedResult(ctx context.Context, key string, maxAge time.Duration) (*model.OrganizationRecord, error)
	SetCachedResult(ctx context.Context, key string, rec *model.OrganizationRecord) error
	DeleteCachedResult(ctx context.Context, key string) error
	DeleteStaleResults(ctx context.Context, maxAge time.Duration) (int, error)
	PurgeCache(ctx context.Context) (int, error)
	CacheStats(ctx context.Context) (*CacheStats, error)

	// Runs
	CreateRun(ctx context.Context, inputLabel string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, summary *model.Summary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
