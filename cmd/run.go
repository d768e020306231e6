package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/ingest"
)

var (
	runInput  string
	runColumn string
	runSheet  string
	runLimit  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over an input spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, err := ingest.ReadFile(runInput, ingest.Options{
			Column:    runColumn,
			SheetName: runSheet,
		})
		if err != nil {
			return err
		}
		names := ingest.CountNames(rows)
		if len(names) == 0 {
			return eris.New("input contains no organization names")
		}
		if runLimit > 0 && runLimit < len(names) {
			names = names[:runLimit]
		}

		res, err := newResolver()
		if err != nil {
			return err
		}
		mapping := res.Resolve(names)

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		created, existing, err := e.Registry.Materialize(ctx, names, mapping)
		if err != nil {
			return eris.Wrap(err, "materialize registry")
		}
		zap.L().Info("registry materialized",
			zap.Int("rows", len(rows)),
			zap.Int("distinct_names", len(names)),
			zap.Int("created", created),
			zap.Int("existing", existing),
		)

		summary, err := e.Runner.Run(ctx, filepath.Base(runInput))
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input spreadsheet (.xlsx or .csv) (required)")
	runCmd.Flags().StringVar(&runColumn, "column", "", "organization column header (default: auto-detect)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N distinct organizations (0 = all)")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
