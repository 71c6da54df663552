package detection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"container-tracker/config"
	"container-tracker/workers/detection/sources"

	"go.uber.org/zap"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

type Runner interface {
	Run(ctx context.Context, imagePath string) (*Report, error)
}

// Worker drains an inbox directory on every tick. Each image is run through
// the pipeline once and then moved out of the inbox.
type Worker struct {
	ctx      context.Context
	logger   *zap.Logger
	pipeline Runner
	inbox    string
	schedule string
	mu       sync.Mutex
	busy     bool
}

func NewWorker(ctx context.Context, pipeline Runner, cfg config.WatchConfig, logger *zap.Logger) *Worker {
	return &Worker{
		ctx:      ctx,
		logger:   logger.With(zap.String("worker", "inbox")),
		pipeline: pipeline,
		inbox:    cfg.InboxDirectory,
		schedule: cfg.Schedule,
	}
}

func (w *Worker) Name() string {
	return "inbox"
}

func (w *Worker) Schedule() string {
	return w.schedule
}

func (w *Worker) Ready(time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.busy && w.ctx.Err() == nil
}

func (w *Worker) Execute() {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return
	}
	w.busy = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	images, err := w.pending()
	if err != nil {
		w.logger.Error("Failed to read inbox", zap.String("inbox", w.inbox), zap.Error(err))
		return
	}

	if len(images) == 0 {
		w.logger.Debug("Inbox empty")
		return
	}

	w.logger.Info("Processing inbox", zap.Int("images", len(images)))
	for _, image := range images {
		if w.ctx.Err() != nil {
			w.logger.Info("Stopping inbox processing", zap.Error(w.ctx.Err()))
			return
		}
		w.process(image)
	}
	w.logger.Info("Inbox work completed")
}

func (w *Worker) pending() ([]string, error) {
	for _, dir := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.inbox, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return sources.ListImages(w.inbox)
}

func (w *Worker) process(image string) {
	dest := processedDir
	if _, err := w.pipeline.Run(w.ctx, image); err != nil {
		w.logger.Error("Pipeline run halted", zap.String("image", image), zap.Error(err))
		dest = failedDir
	}

	target := filepath.Join(w.inbox, dest, filepath.Base(image))
	if err := os.Rename(image, target); err != nil {
		w.logger.Error("Failed to move image out of inbox",
			zap.String("image", image),
			zap.String("target", target),
			zap.Error(err),
		)
	}
}
