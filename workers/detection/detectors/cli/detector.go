// Package cli drives an external YOLO command line detector and reads the
// crops it leaves in its run directory.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"container-tracker/workers/detection/detectors"

	"go.uber.org/zap"
)

type Options struct {
	Command    string
	ModelPath  string
	Classes    []int
	ClassNames []string
	BaseDir    string
	Confidence float64
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Detector struct {
	logger *zap.Logger
	opts   Options
	run    Runner
}

func New(opts Options, logger *zap.Logger) *Detector {
	return &Detector{logger: logger, opts: opts, run: execRunner}
}

// WithRunner replaces the command runner.
func (d *Detector) WithRunner(run Runner) *Detector {
	d.run = run
	return d
}

func (d *Detector) Detect(ctx context.Context, imagePath string) (*detectors.Result, error) {
	previous, err := detectors.LatestRunDir(d.opts.BaseDir)
	if err != nil {
		return nil, err
	}

	args := d.args(imagePath)
	d.logger.Info("Running external detector",
		zap.String("command", d.opts.Command),
		zap.Strings("args", args),
	)

	output, err := d.run(ctx, d.opts.Command, args...)
	if err != nil {
		d.logger.Error("External detector failed",
			zap.String("output", tail(string(output), 2000)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s exited: %v", detectors.ErrNoDetections, d.opts.Command, err)
	}

	runDir, err := detectors.LatestRunDir(d.opts.BaseDir)
	if err != nil {
		return nil, err
	}
	if runDir == "" || runDir == previous {
		return nil, fmt.Errorf("%w: no new run directory under %s", detectors.ErrNoDetections, d.opts.BaseDir)
	}

	result, err := detectors.CollectCrops(runDir, d.opts.ClassNames)
	if err != nil {
		return nil, err
	}
	if result.Total() == 0 {
		return nil, detectors.ErrNoDetections
	}
	return result, nil
}

func (d *Detector) args(imagePath string) []string {
	classes := make([]string, len(d.opts.Classes))
	for i, c := range d.opts.Classes {
		classes[i] = strconv.Itoa(c)
	}

	return []string{
		"predict",
		"model=" + d.opts.ModelPath,
		"source=" + imagePath,
		"save=False",
		"save_crop=True",
		"classes=[" + strings.Join(classes, ",") + "]",
		"conf=" + strconv.FormatFloat(d.opts.Confidence, 'f', -1, 64),
		"project=" + d.opts.BaseDir,
		"name=" + detectors.RunPrefix,
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
