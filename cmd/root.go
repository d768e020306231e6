package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orgclassify",
	Short: "Organization registry and insurance classification pipeline",
	Long:  "Resolves noisy organization names to canonical entities, discovers their websites, fetches descriptive content, and classifies each organization as insurance-sector or not.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
