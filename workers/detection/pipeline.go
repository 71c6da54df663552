// Package detection runs photographs through detection, recognition and
// upload, and watches an inbox directory for new photographs.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"container-tracker/metrics"
	"container-tracker/workers/detection/detectors"
	"container-tracker/workers/detection/uploader"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TextRecognizer interface {
	Recognize(ctx context.Context, path string) string
}

type Uploader interface {
	Create(ctx context.Context, s uploader.Submission) uploader.Outcome
}

// Classes names the detector classes holding container numbers and ISO codes.
type Classes struct {
	Container string
	ISO       string
}

// Report summarises one pipeline run.
type Report struct {
	ImagePath      string
	RunDir         string
	ContainerTexts []string
	ISOTexts       []string
	Outcomes       []uploader.Outcome
}

// Count returns how many uploads ended with the given status.
func (r *Report) Count(status uploader.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

type Pipeline struct {
	logger     *zap.Logger
	detector   detectors.Detector
	recognizer TextRecognizer
	uploader   Uploader
	classes    Classes
	metrics    *metrics.Metrics
}

func NewPipeline(
	detector detectors.Detector,
	recognizer TextRecognizer,
	up Uploader,
	classes Classes,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		detector:   detector,
		recognizer: recognizer,
		uploader:   up,
		classes:    classes,
		metrics:    m,
	}
}

// Run processes one image. Only a failed detection is returned as an error;
// unreadable crops and rejected uploads are recorded in the report.
func (p *Pipeline) Run(ctx context.Context, imagePath string) (*Report, error) {
	start := time.Now()
	report := &Report{ImagePath: imagePath}
	logger := p.logger.With(zap.String("run_id", uuid.NewString()), zap.String("image", imagePath))

	logger.Info("Starting detection")
	result, err := p.detector.Detect(ctx, imagePath)
	if err != nil {
		label := "error"
		if errors.Is(err, detectors.ErrNoDetections) {
			label = "no_detections"
		}
		p.metrics.RecordRun(label, time.Since(start).Seconds())
		return nil, fmt.Errorf("detect %s: %w", imagePath, err)
	}
	report.RunDir = result.RunDir
	logger.Info("Detection finished", zap.String("run_dir", result.RunDir), zap.Int("crops", result.Total()))

	report.ContainerTexts = p.recognize(ctx, p.classes.Container, result.Paths(p.classes.Container))
	report.ISOTexts = p.recognize(ctx, p.classes.ISO, result.Paths(p.classes.ISO))

	if len(report.ContainerTexts) == 0 {
		logger.Warn("No container numbers recognized, nothing to upload")
		p.metrics.RecordRun("empty", time.Since(start).Seconds())
		return report, nil
	}

	for _, s := range Pair(report.ContainerTexts, report.ISOTexts) {
		outcome := p.uploader.Create(ctx, s)
		p.metrics.RecordUpload(string(outcome.Status))
		report.Outcomes = append(report.Outcomes, outcome)
	}

	logger.Info("Pipeline finished",
		zap.Int("created", report.Count(uploader.StatusCreated)),
		zap.Int("duplicates", report.Count(uploader.StatusDuplicate)),
		zap.Int("failed", report.Count(uploader.StatusFailed)),
	)
	p.metrics.RecordRun("ok", time.Since(start).Seconds())
	return report, nil
}

func (p *Pipeline) recognize(ctx context.Context, class string, paths []string) []string {
	var texts []string
	for _, path := range paths {
		text := p.recognizer.Recognize(ctx, path)
		p.metrics.RecordCrop(class, text != "")
		if text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}
