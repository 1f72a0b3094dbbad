package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gqlpipe [module]",
	Short: "Cache-aware GraphQL client generation",
	Long: `Generate GraphQL clients across build modules.

Server modules declare their APIs and get one generator launcher per API.
Client modules run the launchers of their upstream modules into their own
source tree. Both phases are skipped while their settings are unchanged.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

// newLoader is replaced in tests so every run gets a fresh viper instance
var newLoader = config.NewLoader

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("silent", "s", false, "Suppress console output from the generator")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the generation cache")
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (default <module>/"+config.DefaultCacheDir+")")
	rootCmd.PersistentFlags().IntP("parallelism", "j", config.DefaultParallelism, "Destination directories generated concurrently")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultTimeout, "Timeout of a single generator run (0 disables it)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(cacheCmd)
}
