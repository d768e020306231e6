package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
)

var retryAllFailed bool

var retryCmd = &cobra.Command{
	Use:   "retry [canonical-name]",
	Short: "Re-run enrichment for failed organizations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !retryAllFailed && len(args) == 0 {
			return eris.New("provide a canonical name or --all-failed")
		}

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if retryAllFailed {
			n, err := e.Runner.RetryAllFailed(ctx)
			if err != nil {
				return eris.Wrap(err, "retry all failed")
			}
			zap.L().Info("retry complete", zap.Int("reprocessed", n))
			return nil
		}

		rec, err := e.Runner.Retry(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "retry %q", args[0])
		}
		return printRecord(rec)
	},
}

func printRecord(rec *model.OrganizationRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func init() {
	retryCmd.Flags().BoolVar(&retryAllFailed, "all-failed", false, "retry every organization in a failure state")
	rootCmd.AddCommand(retryCmd)
}
