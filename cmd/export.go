package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/export"
	"github.com/meridian-group/orgclassify/internal/ingest"
	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/registry"
)

var (
	exportOut    string
	exportInput  string
	exportColumn string
	exportSheet  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pipeline results as CSV",
}

var exportRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Export one row per canonical organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := registry.New(st).All(ctx)
		if err != nil {
			return err
		}

		if err := export.WriteRecordsCSV(recordPtrs(records), exportOut); err != nil {
			return err
		}
		zap.L().Info("records exported", zap.Int("count", len(records)), zap.String("path", exportOut))
		return nil
	},
}

// exportMergedCmd re-reads the original input and annotates every row with
// its canonical name and classification verdict.
var exportMergedCmd = &cobra.Command{
	Use:   "merged",
	Short: "Export the input rows annotated with results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := ingest.ReadFile(exportInput, ingest.Options{
			Column:    exportColumn,
			SheetName: exportSheet,
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

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := registry.New(st).All(ctx)
		if err != nil {
			return err
		}

		if err := export.WriteMergedCSV(rows, mapping, recordPtrs(records), exportOut); err != nil {
			return err
		}
		zap.L().Info("merge exported", zap.Int("rows", len(rows)), zap.String("path", exportOut))
		return nil
	},
}

func recordPtrs(records []model.OrganizationRecord) []*model.OrganizationRecord {
	out := make([]*model.OrganizationRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportOut, "out", "", "output CSV path (required)")
	_ = exportCmd.MarkPersistentFlagRequired("out")

	exportMergedCmd.Flags().StringVar(&exportInput, "input", "", "original input spreadsheet (required)")
	exportMergedCmd.Flags().StringVar(&exportColumn, "column", "", "organization column header (default: auto-detect)")
	exportMergedCmd.Flags().StringVar(&exportSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	_ = exportMergedCmd.MarkFlagRequired("input")

	exportCmd.AddCommand(exportRecordsCmd, exportMergedCmd)
	rootCmd.AddCommand(exportCmd)
}
