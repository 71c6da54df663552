package detectors

import (
	"context"
	"errors"
)

// ErrNoDetections means a detection run produced no usable crops. It is
// fatal for the run: there is nothing to recognize or upload.
var ErrNoDetections = errors.New("detector produced no crops")

// Detector finds regions of interest in an image and saves them as crops.
type Detector interface {
	Detect(ctx context.Context, imagePath string) (*Result, error)
}

// Crop is one saved sub-image. Index is its position within its class.
type Crop struct {
	Class string
	Index int
	Path  string
}

// Result is the output of a single detection run.
type Result struct {
	RunDir string
	Crops  map[string][]Crop
}

func NewResult(runDir string) *Result {
	return &Result{RunDir: runDir, Crops: make(map[string][]Crop)}
}

// Add appends a crop to its class, assigning the next index.
func (r *Result) Add(class, path string) {
	r.Crops[class] = append(r.Crops[class], Crop{
		Class: class,
		Index: len(r.Crops[class]),
		Path:  path,
	})
}

// Paths returns the crop files of one class in detection order.
func (r *Result) Paths(class string) []string {
	crops := r.Crops[class]
	paths := make([]string, len(crops))
	for i, c := range crops {
		paths[i] = c.Path
	}
	return paths
}

func (r *Result) Total() int {
	n := 0
	for _, crops := range r.Crops {
		n += len(crops)
	}
	return n
}
