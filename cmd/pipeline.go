package cmd

import (
	"errors"
	"fmt"

	"container-tracker/metrics"
	"container-tracker/workers/detection"
	"container-tracker/workers/detection/detectors"
	"container-tracker/workers/detection/detectors/cli"
	"container-tracker/workers/detection/detectors/yolo"
	"container-tracker/workers/detection/recognizers"
	"container-tracker/workers/detection/recognizers/tesseract"
	"container-tracker/workers/detection/uploader"

	"go.uber.org/zap"
)

// buildPipeline wires the configured detector, OCR engine and uploader.
// The returned cleanup releases the model and the OCR engine.
func (a *app) buildPipeline(m *metrics.Metrics) (*detection.Pipeline, func(), error) {
	p := a.cfg.Pipeline
	d := p.Detector

	var (
		detector detectors.Detector
		closers  []func() error
	)

	switch d.Backend {
	case "tflite":
		yd, err := yolo.New(yolo.Options{
			ModelPath:  d.ModelPath,
			LabelsPath: d.LabelsPath,
			Classes:    d.Classes,
			ClassNames: []string{p.ContainerClass, p.ISOClass},
			BaseDir:    d.BaseDir,
			Confidence: d.Confidence,
			IoU:        d.IoU,
			Threads:    d.Threads,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		detector = yd
		closers = append(closers, func() error { yd.Close(); return nil })
	case "command":
		detector = cli.New(cli.Options{
			Command:    d.Command,
			ModelPath:  d.ModelPath,
			Classes:    d.Classes,
			ClassNames: []string{p.ContainerClass, p.ISOClass},
			BaseDir:    d.BaseDir,
			Confidence: d.Confidence,
		}, a.logger)
	default:
		return nil, nil, fmt.Errorf("unsupported detector backend: %s", d.Backend)
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Warn("Cleanup failed", zap.Error(err))
			}
		}
	}

	engine, err := tesseract.New(p.Recognizer.Languages)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, engine.Close)

	recognizer := recognizers.New(engine, recognizers.Options{
		Upscale:       p.Recognizer.Upscale,
		Blur:          p.Recognizer.Blur,
		MinConfidence: p.Recognizer.MinConfidence,
	}, a.logger)

	pipeline := detection.NewPipeline(
		detector,
		recognizer,
		uploader.NewClient(p.APIURL, p.UploadTimeout, a.logger),
		detection.Classes{Container: p.ContainerClass, ISO: p.ISOClass},
		a.logger,
		m,
	)
	return pipeline, cleanup, nil
}

// errAllRunsHalted is returned when no image made it past detection.
var errAllRunsHalted = errors.New("every pipeline run halted")
