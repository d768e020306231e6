// Package export writes pipeline results back out as CSV files: a
// per-organization snapshot and a row-level merge of the original input.
package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/resolver"
)

// recordColumns defines the ordered columns of the organization snapshot.
var recordColumns = []string{
	"canonical_name",
	"occurrence_count",
	"website_url",
	"search_method",
	"content_source",
	"is_insurance",
	"stage_status",
	"error_stage",
	"error_message",
}

// mergedColumns defines the ordered columns of the row-level merge output.
var mergedColumns = []string{
	"home_organization",
	"canonical_name",
	"is_insurance",
	"stage_status",
	"website_url",
	"source",
}

// WriteRecordsCSV writes one row per canonical organization.
func WriteRecordsCSV(records []*model.OrganizationRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create records file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(recordColumns); err != nil {
		return eris.Wrap(err, "export: write records header")
	}
	for _, rec := range records {
		if err := w.Write(buildRecordRow(rec)); err != nil {
			return eris.Wrap(err, "export: write record row")
		}
	}
	return w.Error()
}

// WriteMergedCSV writes the original input rows annotated with the
// resolution and classification results. Rows whose organization never
// produced a record still appear, with the verdict columns blank.
func WriteMergedCSV(rows []model.RawRow, mapping resolver.Mapping, records []*model.OrganizationRecord, outputPath string) error {
	byName := make(map[string]*model.OrganizationRecord, len(records))
	for _, rec := range records {
		byName[rec.CanonicalName] = rec
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create merge file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(mergedColumns); err != nil {
		return eris.Wrap(err, "export: write merge header")
	}
	for _, row := range rows {
		canonical := mapping.Canonical(row.HomeOrganization)
		out := []string{
			row.HomeOrganization,
			canonical,
			"", // is_insurance
			"", // stage_status
			"", // website_url
			row.Source,
		}
		if rec, ok := byName[canonical]; ok {
			out[2] = formatVerdict(rec.IsInsurance)
			out[3] = string(rec.StageStatus)
			out[4] = rec.WebsiteURL
		}
		if err := w.Write(out); err != nil {
			return eris.Wrap(err, "export: write merge row")
		}
	}
	return w.Error()
}

func buildRecordRow(rec *model.OrganizationRecord) []string {
	return []string{
		rec.CanonicalName,
		strconv.Itoa(rec.OccurrenceCount),
		rec.WebsiteURL,
		string(rec.SearchMethod),
		rec.ContentSource,
		formatVerdict(rec.IsInsurance),
		string(rec.StageStatus),
		rec.ErrorStage,
		rec.ErrorMessage,
	}
}

// formatVerdict renders the tri-state verdict: empty for undetermined.
func formatVerdict(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "yes"
	}
	return "no"
}
