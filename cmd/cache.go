package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the generation cache",
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear [module]",
	Short:        "Remove every cached record",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats [module]",
	Short:        "Show the number of cached records",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Store().Close()

	if err := c.Store().Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Store().Close()

	stats, err := c.Store().Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend: %s\n", cfg.Backend)
	fmt.Fprintf(out, "Location: %s\n", cfg.CacheDir)
	fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
	fmt.Fprintf(out, "Size: %d bytes\n", stats.Size)

	return nil
}
