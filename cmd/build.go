package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/gqlpipe/internal/cache"
	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/launcher"
	"github.com/Norgate-AV/gqlpipe/internal/logging"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
	"github.com/Norgate-AV/gqlpipe/internal/pipeline"
)

var log = logging.WithSubsys("cmd")

var buildCmd = &cobra.Command{
	Use:     "build [module]",
	Aliases: []string{"client"},
	Short:   "Generate the GraphQL clients of a module",
	Long: `Run the client phase of a module: build every upstream server module,
invoke its launchers into the module's output directory and print the
generated files.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	return withPipeline(cfg, func(p *pipeline.Pipeline) error {
		files, err := p.Client(cmd.Context(), cfg)
		printFiles(cmd, files)
		return err
	})
}

// loadConfig loads the module configuration and applies the logging switches
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := newLoader().LoadForBuild(cmd, args)
	if err != nil {
		return nil, err
	}

	logging.SetupLogging(cfg.Verbose, cfg.Silent)

	log.WithFields(logrus.Fields{
		logfields.Module:  cfg.ModuleDir,
		logfields.Backend: cfg.Backend,
	}).Debug("Loaded configuration")
	return cfg, nil
}

// openCache opens the configured cache store
func openCache(cfg *config.Config) (*cache.Cache, error) {
	store, err := cache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	c := cache.New(store)
	c.Disabled = cfg.NoCache

	return c, nil
}

func withPipeline(cfg *config.Config, fn func(p *pipeline.Pipeline) error) error {
	c, err := openCache(cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := c.Store().Close(); err != nil {
			log.WithError(err).Warn("Failed to close cache")
		}
	}()

	p := pipeline.New(c, launcher.NewLauncher(cfg.Client.Timeout, cfg.Silent))
	return fn(p)
}

func printFiles(cmd *cobra.Command, files []string) {
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
}
