// Package yolo runs an exported YOLO detection model in-process with TensorFlow Lite.
package yolo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"container-tracker/workers/detection/detectors"

	"github.com/disintegration/imaging"
	tflite "github.com/tphakala/go-tflite"
	"go.uber.org/zap"
)

type Options struct {
	ModelPath  string
	LabelsPath string
	Classes    []int
	// ClassNames names Classes by position and takes precedence over the labels file.
	ClassNames []string
	BaseDir    string
	Confidence float64
	IoU        float64
	Threads    int
}

type Detector struct {
	logger      *zap.Logger
	opts        Options
	labels      []string
	names       map[int]string
	classes     map[int]bool
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputW      int
	inputH      int
	mu          sync.Mutex
}

// New loads the model and allocates its tensors. Close releases them.
func New(opts Options, logger *zap.Logger) (*Detector, error) {
	labels, err := loadLabels(labelsPath(opts))
	if err != nil {
		return nil, err
	}
	names, err := resolveNames(opts.Classes, opts.ClassNames, labels)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(opts.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model %s", opts.ModelPath)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		logger.Error("TFLite error", zap.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}

	d := &Detector{
		logger:      logger,
		opts:        opts,
		labels:      labels,
		names:       names,
		classes:     make(map[int]bool, len(opts.Classes)),
		model:       model,
		options:     options,
		interpreter: interpreter,
	}
	for _, c := range opts.Classes {
		d.classes[c] = true
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		d.Close()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Type() != tflite.Float32 {
		d.Close()
		return nil, fmt.Errorf("model input must be a float32 NHWC image tensor")
	}
	d.inputH, d.inputW = input.Dim(1), input.Dim(2)

	logger.Info("Detection model loaded",
		zap.String("model", opts.ModelPath),
		zap.Int("input_width", d.inputW),
		zap.Int("input_height", d.inputH),
		zap.Int("labels", len(labels)),
		zap.Int("threads", threads),
	)
	return d, nil
}

func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interpreter != nil {
		d.interpreter.Delete()
		d.interpreter = nil
	}
	if d.options != nil {
		d.options.Delete()
		d.options = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
}

// Detect runs the model on one image and writes the crops of the requested
// classes into a new run directory under BaseDir.
func (d *Detector) Detect(ctx context.Context, imagePath string) (*detectors.Result, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", imagePath, err)
	}

	start := time.Now()
	boxes, err := d.predict(ctx, img)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Inference finished",
		zap.String("image", imagePath),
		zap.Int("boxes", len(boxes)),
		zap.Duration("took", time.Since(start)),
	)

	if len(boxes) == 0 {
		return nil, detectors.ErrNoDetections
	}

	runDir, err := detectors.NextRunDir(d.opts.BaseDir)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return saveCrops(img, boxes, runDir, stem, d.label)
}

// saveCrops writes each box as runDir/crops/<label>/<stem>_<k>.jpg, k counting
// from 1 within a label. Boxes that clip to nothing are skipped.
func saveCrops(img image.Image, boxes []Box, runDir, stem string, label func(int) string) (*detectors.Result, error) {
	result := detectors.NewResult(runDir)

	for _, b := range boxes {
		rect := b.Rect(img.Bounds())
		if rect.Empty() {
			continue
		}

		class := label(b.ClassID)
		dir := filepath.Join(runDir, "crops", class)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create crop directory: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", stem, len(result.Crops[class])+1))
		if err := imaging.Save(imaging.Crop(img, rect), path); err != nil {
			return nil, fmt.Errorf("save crop %s: %w", path, err)
		}
		result.Add(class, path)
	}

	if result.Total() == 0 {
		return nil, detectors.ErrNoDetections
	}
	return result, nil
}

func (d *Detector) predict(ctx context.Context, img image.Image) ([]Box, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interpreter == nil {
		return nil, errors.New("detector is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := d.interpreter.GetInputTensor(0)
	fillInput(input.Float32s(), imaging.Resize(img, d.inputW, d.inputH, imaging.Linear))

	if status := d.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := d.interpreter.GetOutputTensor(0)
	dims := make([]int, output.NumDims())
	for i := range dims {
		dims[i] = output.Dim(i)
	}

	bounds := img.Bounds()
	boxes := decode(output.Float32s(), dims, decodeParams{
		inputW:     d.inputW,
		inputH:     d.inputH,
		srcW:       bounds.Dx(),
		srcH:       bounds.Dy(),
		confidence: d.opts.Confidence,
		classes:    d.classes,
	})
	return nonMaxSuppression(boxes, d.opts.IoU), nil
}

// fillInput writes RGB pixels scaled to [0,1] in HWC order.
func fillInput(dst []float32, img *image.NRGBA) {
	i := 0
	for p := 0; p+3 < len(img.Pix) && i+2 < len(dst); p += 4 {
		dst[i] = float32(img.Pix[p]) / 255
		dst[i+1] = float32(img.Pix[p+1]) / 255
		dst[i+2] = float32(img.Pix[p+2]) / 255
		i += 3
	}
}

func (d *Detector) label(classID int) string {
	if name, ok := d.names[classID]; ok {
		return name
	}
	return strconv.Itoa(classID)
}

// resolveNames maps every requested class id to the name its crops are filed
// under: the positional class name if given, else the labels file entry.
func resolveNames(classes []int, classNames, labels []string) (map[int]string, error) {
	names := make(map[int]string, len(classes))
	for i, id := range classes {
		switch {
		case i < len(classNames) && classNames[i] != "":
			names[id] = classNames[i]
		case id >= 0 && id < len(labels) && labels[id] != "":
			names[id] = labels[id]
		default:
			return nil, fmt.Errorf("class %d has no name: provide a labels file or a class name", id)
		}
	}
	return names, nil
}

// labelsPath falls back to labels.txt next to the model.
func labelsPath(opts Options) string {
	if opts.LabelsPath != "" {
		return opts.LabelsPath
	}
	candidate := filepath.Join(filepath.Dir(opts.ModelPath), "labels.txt")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// loadLabels reads one class name per line; line n names class id n.
func loadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	return labels, nil
}
