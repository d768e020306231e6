package model

import "time"

// StageStatus tracks how far an organization has progressed through the
// enrichment state machine. It is the single source of truth for scheduling:
// the orchestrator only picks up records whose status is non-terminal.
type StageStatus string

const (
	StagePending         StageStatus = "pending"
	StageWebsiteSearch   StageStatus = "website_search"
	StageContentFetch    StageStatus = "content_fetch"
	StageContentValidate StageStatus = "content_validate"
	StageClassify        StageStatus = "classify"

	// Terminal states.
	StageCompleted            StageStatus = "completed"
	StageWebsiteNotFound      StageStatus = "website_not_found"
	StageScrapingFailed       StageStatus = "scraping_failed"
	StageClassificationFailed StageStatus = "classification_failed"
)

// IsTerminal reports whether the state machine is done with this record.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageCompleted, StageWebsiteNotFound, StageScrapingFailed, StageClassificationFailed:
		return true
	}
	return false
}

// IsFailure reports whether the record ended in a failure state.
func (s StageStatus) IsFailure() bool {
	return s.IsTerminal() && s != StageCompleted
}

// SearchMethod identifies which search backend produced the website URL.
type SearchMethod string

const (
	SearchGoogle     SearchMethod = "google"
	SearchDuckDuckGo SearchMethod = "duckduckgo"
	SearchBing       SearchMethod = "bing"
	SearchNone       SearchMethod = "none"
)

// OrganizationRecord is the per-canonical-organization tracking record.
// Created at first sighting, mutated only by the orchestrator, never deleted.
type OrganizationRecord struct {
	CanonicalName   string       `json:"canonical_name"`
	OccurrenceCount int          `json:"occurrence_count"`
	WebsiteURL      string       `json:"website_url,omitempty"`
	SearchMethod    SearchMethod `json:"search_method"`
	ContentExcerpt  string       `json:"content_excerpt,omitempty"`
	ContentSource   string       `json:"content_source,omitempty"` // wikipedia, website, about_page
	IsInsurance     *bool        `json:"is_insurance,omitempty"`
	StageStatus     StageStatus  `json:"stage_status"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ErrorStage      string       `json:"error_stage,omitempty"`

	// StageDurations records elapsed milliseconds per stage name.
	StageDurations map[string]int64 `json:"stage_durations,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewRecord creates a pending record for a canonical name.
func NewRecord(canonicalName string, occurrences int) *OrganizationRecord {
	return &OrganizationRecord{
		CanonicalName:   canonicalName,
		OccurrenceCount: occurrences,
		SearchMethod:    SearchNone,
		StageStatus:     StagePending,
		StageDurations:  make(map[string]int64),
		LastUpdated:     time.Now().UTC(),
	}
}

// Touch bumps the record's last-updated timestamp.
func (r *OrganizationRecord) Touch() {
	r.LastUpdated = time.Now().UTC()
}

// Run is one batch-level execution, kept for auditability.
type Run struct {
	ID         string     `json:"id"`
	InputLabel string     `json:"input_label"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
}

// Summary aggregates terminal-state counts for a batch.
type Summary struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	Insurance            int `json:"insurance"`
	NonInsurance         int `json:"non_insurance"`
	WebsiteNotFound      int `json:"website_not_found"`
	ScrapingFailed       int `json:"scraping_failed"`
	ClassificationFailed int `json:"classification_failed"`
	CacheHits            int `json:"cache_hits"`
	Skipped              int `json:"skipped"` // already terminal at start
}

// RawRow is one spreadsheet row as delivered by ingestion: the raw
// organization string plus the source file label it came from.
type RawRow struct {
	HomeOrganization string `json:"home_organization"`
	Source           string `json:"source"`
}
