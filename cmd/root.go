// Package cmd holds the container-tracker command line.
package cmd

import (
	"container-tracker/config"
	"container-tracker/core"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// RootCommand creates the root command with every subcommand attached.
func RootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "container-tracker",
		Short:        "Track shipping containers from photographs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			logger, err := core.NewLogger(*cfg)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.AddCommand(
		serveCommand(a),
		detectCommand(a),
		watchCommand(a),
	)

	return rootCmd
}
