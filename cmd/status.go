package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-group/orgclassify/internal/model"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry progress and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(ctx, statusRuns)
		if err != nil {
			return err
		}

		out := struct {
			ByStatus map[model.StageStatus]int `json:"by_status"`
			Runs     []model.Run               `json:"recent_runs"`
		}{
			ByStatus: counts,
			Runs:     runs,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
