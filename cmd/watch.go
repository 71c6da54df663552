package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"container-tracker/core"
	"container-tracker/metrics"
	"container-tracker/workers/detection"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func watchCommand(a *app) *cobra.Command {
	var metricsAddress string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process images dropped into the inbox directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := metrics.New()
			if err != nil {
				return err
			}

			pipeline, cleanup, err := a.buildPipeline(m)
			if err != nil {
				return err
			}
			defer cleanup()

			if metricsAddress != "" {
				e := newMetricsServer(m)
				go func() {
					a.logger.Info("Metrics listening", zap.String("address", metricsAddress))
					if err := e.Start(metricsAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("Metrics server stopped", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = e.Shutdown(shutdownCtx)
				}()
			}

			worker := detection.NewWorker(ctx, pipeline, a.cfg.Watch, a.logger)
			c, err := core.NewOrchestrator(a.logger, []core.Worker{worker}).Start()
			if err != nil {
				return err
			}

			a.logger.Info("Watching inbox", zap.String("inbox", a.cfg.Watch.InboxDirectory))
			<-ctx.Done()

			a.logger.Info("Shutting down, waiting for running work")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address")
	return cmd
}

// newMetricsServer exposes only /metrics while the watcher runs.
func newMetricsServer(m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	return e
}
