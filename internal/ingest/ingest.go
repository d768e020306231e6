// Package ingest reads registration spreadsheets and extracts the raw
// organization names the pipeline starts from.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/resolver"
)

// Options configures spreadsheet reading.
type Options struct {
	// Column is the header of the organization column. Empty tries the
	// usual suspects.
	Column string
	// SheetName selects an XLSX sheet by name; empty takes the first.
	SheetName string
	// Delimiter overrides the CSV separator; zero means comma.
	Delimiter rune
}

// defaultColumns are tried in order when no column is configured.
var defaultColumns = []string{
	"home organization",
	"home_organization",
	"organization",
	"organisation",
	"company",
}

// ReadFile loads raw organization rows from a spreadsheet, dispatching on
// the file extension. Blank cells are dropped; everything else passes
// through untouched, cleaning is the resolver's job.
func ReadFile(path string, opts Options) ([]model.RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, opts)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer func() { _ = f.Close() }()
		return readCSV(f, filepath.Base(path), opts)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// CountNames aggregates raw rows into distinct names with frequencies,
// preserving first-seen order.
func CountNames(rows []model.RawRow) []resolver.NameCount {
	index := make(map[string]int)
	var out []resolver.NameCount
	for _, row := range rows {
		name := strings.TrimSpace(row.HomeOrganization)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			out[i].Count++
			continue
		}
		index[name] = len(out)
		out = append(out, resolver.NameCount{Raw: name, Count: 1})
	}
	return out
}

func readXLSX(path string, opts Options) ([]model.RawRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("ingest: sheet %q is empty", sheet.Name)
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
	}
	col, err := findColumn(header, opts.Column)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(path)
	var rows []model.RawRow
	for _, row := range sheet.Rows[1:] {
		if col >= len(row.Cells) {
			continue
		}
		value := strings.TrimSpace(row.Cells[col].String())
		if value == "" {
			continue
		}
		rows = append(rows, model.RawRow{HomeOrganization: value, Source: source})
	}

	zap.L().Info("ingest: xlsx loaded",
		zap.String("file", source),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func readCSV(r io.Reader, source string, opts Options) ([]model.RawRow, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	col, err := findColumn(header, opts.Column)
	if err != nil {
		return nil, err
	}

	var rows []model.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		if col >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[col])
		if value == "" {
			continue
		}
		rows = append(rows, model.RawRow{HomeOrganization: value, Source: source})
	}

	zap.L().Info("ingest: csv loaded",
		zap.String("file", source),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// findColumn locates the organization column in a header row. An explicit
// column name must match; otherwise the default candidates are tried in
// order.
func findColumn(header []string, explicit string) (int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	if explicit != "" {
		want := normalizeHeader(explicit)
		for i, h := range normalized {
			if h == want {
				return i, nil
			}
		}
		return 0, eris.Errorf("ingest: column %q not found in header %v", explicit, header)
	}

	for _, want := range defaultColumns {
		want = normalizeHeader(want)
		for i, h := range normalized {
			if h == want {
				return i, nil
			}
		}
	}
	return 0, eris.Errorf("ingest: no organization column in header %v", header)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}
