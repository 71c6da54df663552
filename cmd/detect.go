package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"container-tracker/workers/detection"
	"container-tracker/workers/detection/sources"
	"container-tracker/workers/detection/uploader"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func detectCommand(a *app) *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "detect [image|directory|url ...]",
		Short: "Detect container numbers in photographs and upload them",
		Long: `Run detection, OCR and upload once for every image found at the given
locations. Without arguments IMAGE_PATH is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL != "" {
				a.cfg.Pipeline.APIURL = apiURL
			}
			if len(args) == 0 {
				args = []string{a.cfg.Pipeline.ImagePath}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			downloadDir, err := os.MkdirTemp("", "container-tracker-")
			if err != nil {
				return fmt.Errorf("create download directory: %w", err)
			}
			defer os.RemoveAll(downloadDir)

			var images []string
			for _, location := range args {
				found, err := sources.Resolve(ctx, location, downloadDir, a.logger)
				if err != nil {
					a.logger.Error("Skipping image source", zap.String("location", location), zap.Error(err))
					continue
				}
				images = append(images, found...)
			}
			if len(images) == 0 {
				return fmt.Errorf("no images found in %v", args)
			}

			pipeline, cleanup, err := a.buildPipeline(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			var reports []*detection.Report
			for _, image := range images {
				report, err := pipeline.Run(ctx, image)
				if err != nil {
					a.logger.Error("Pipeline run halted", zap.String("image", image), zap.Error(err))
					report = &detection.Report{ImagePath: image}
				}
				reports = append(reports, report)
			}

			printSummary(cmd, reports)

			for _, r := range reports {
				if r.RunDir != "" {
					return nil
				}
			}
			return errAllRunsHalted
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "Create endpoint of the container API (overrides API_URL)")
	return cmd
}

func printSummary(cmd *cobra.Command, reports []*detection.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tNUMBERS\tISO CODES\tCREATED\tDUPLICATE\tFAILED")
	for _, r := range reports {
		if r.RunDir == "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", r.ImagePath)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ImagePath,
			len(r.ContainerTexts),
			len(r.ISOTexts),
			r.Count(uploader.StatusCreated),
			r.Count(uploader.StatusDuplicate),
			r.Count(uploader.StatusFailed),
		)
	}
	_ = w.Flush()
}
