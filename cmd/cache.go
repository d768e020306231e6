package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/cache"
)

var cacheClearOrg string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the classification result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and age",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := cache.New(st, cfg.Cache.MaxAge()).Stats(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cache entries (all, or one organization with --org)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		c := cache.New(st, cfg.Cache.MaxAge())
		if cacheClearOrg != "" {
			if err := c.Evict(ctx, cacheClearOrg); err != nil {
				return err
			}
			zap.L().Info("cache entry cleared", zap.String("organization", cacheClearOrg))
			return nil
		}

		n, err := c.Purge(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.Int("deleted", n))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cache entries older than the configured max age",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := cache.New(st, cfg.Cache.MaxAge()).PruneStale(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache pruned", zap.Int("deleted", n))
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearOrg, "org", "", "clear only this organization's entry")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
