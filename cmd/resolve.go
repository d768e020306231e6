package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/meridian-group/orgclassify/internal/ingest"
)

var (
	resolveInput  string
	resolveColumn string
	resolveSheet  string
)

// resolveCmd previews entity resolution without touching the store: which
// raw variants collapse into which canonical names.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Preview name resolution for an input file (dry run)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := ingest.ReadFile(resolveInput, ingest.Options{
			Column:    resolveColumn,
			SheetName: resolveSheet,
		})
		if err != nil {
			return err
		}
		names := ingest.CountNames(rows)

		res, err := newResolver()
		if err != nil {
			return err
		}
		mapping := res.Resolve(names)

		groups := make(map[string][]string)
		for _, nc := range names {
			canonical := mapping.Canonical(nc.Raw)
			groups[canonical] = append(groups[canonical], nc.Raw)
		}

		type group struct {
			Canonical string   `json:"canonical"`
			Variants  []string `json:"variants"`
		}
		out := make([]group, 0, len(groups))
		for canonical, variants := range groups {
			sort.Strings(variants)
			out = append(out, group{Canonical: canonical, Variants: variants})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveInput, "input", "", "input spreadsheet (.xlsx or .csv) (required)")
	resolveCmd.Flags().StringVar(&resolveColumn, "column", "", "organization column header (default: auto-detect)")
	resolveCmd.Flags().StringVar(&resolveSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	_ = resolveCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(resolveCmd)
}
