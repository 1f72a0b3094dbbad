package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/gqlpipe/internal/pipeline"
)

var serverCmd = &cobra.Command{
	Use:   "server [module]",
	Short: "Write the generator launchers of a module",
	Long: `Run the server phase of a module: write one launcher per configured API
and the metadata file client modules read them from.`,
	RunE:         runServer,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	serverCmd.Flags().BoolP("force", "f", false, "Regenerate even if the settings are unchanged")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")

	return withPipeline(cfg, func(p *pipeline.Pipeline) error {
		files, err := p.Server(cmd.Context(), cfg, force)
		printFiles(cmd, files)
		return err
	})
}
