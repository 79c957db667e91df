// Package commands defines the Cobra commands of the docchat binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"docchat/internal/config"
	"docchat/internal/logging"
)

// cliState is filled by the root command before any subcommand runs.
type cliState struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func NewRootCmd() *cobra.Command {
	rt := &cliState{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with your PDF documents",
		Long: `docchat answers questions about uploaded PDF documents.

Each document is embedded once into its own vector namespace; every
question is rewritten against the conversation history, grounded on the
closest chunks and answered by the configured LLM.

Settings come from configs/config.toml (or --config) and are overridden
by environment variables. See 'docchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.log = logging.New(cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(rt.log)
			rt.log.Debug("command start", "command", cmd.Name(), "env", cfg.App.Env)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to TOML config file (default: $CONFIG_FILE or configs/config.toml)")

	root.AddCommand(
		newServeCmd(rt),
		newProvisionCmd(rt),
		newChatCmd(rt),
	)
	return root
}
