package cmd

import (
	"os/signal"
	"syscall"

	"container-tracker/containers/api"
	"container-tracker/containers/models"
	"container-tracker/containers/repositories"
	"container-tracker/core"
	"container-tracker/metrics"

	"github.com/spf13/cobra"
)

func serveCommand(a *app) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the container REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				a.cfg.API.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := core.OpenDatabase(a.cfg.Database, a.logger, &models.Container{})
			if err != nil {
				return err
			}

			m, err := metrics.New()
			if err != nil {
				return err
			}

			server := api.NewServer(repositories.NewRepository(db), a.logger, m)
			return server.Run(ctx, a.cfg.API.Address)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides HTTP_ADDRESS)")
	return cmd
}
