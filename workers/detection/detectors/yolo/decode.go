package yolo

import (
	"image"
	"math"
	"sort"
)

// Box is one detection in source image pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float64
	Score          float64
	ClassID        int
}

func (b Box) area() float64 {
	return math.Max(0, b.X2-b.X1) * math.Max(0, b.Y2-b.Y1)
}

// Rect rounds the box outwards to whole pixels and clips it to bounds.
func (b Box) Rect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	)
	return r.Intersect(bounds)
}

func iou(a, b Box) float64 {
	ix := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	iy := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// decodeParams describes how raw output maps back onto the source image.
type decodeParams struct {
	inputW, inputH int
	srcW, srcH     int
	confidence     float64
	classes        map[int]bool
}

// decode reads a YOLOv8/v11 detection head. Output shape is [1, 4+nc, n]
// as exported, or [1, n, 4+nc] when transposed. Box attributes are
// cx, cy, w, h either in input pixels or normalized to [0,1].
func decode(data []float32, dims []int, p decodeParams) []Box {
	if len(dims) != 3 {
		return nil
	}
	attrs, count := dims[1], dims[2]
	transposed := false
	if attrs > count {
		attrs, count = count, attrs
		transposed = true
	}
	if attrs <= 4 || len(data) < attrs*count {
		return nil
	}

	at := func(attr, i int) float64 {
		if transposed {
			return float64(data[i*attrs+attr])
		}
		return float64(data[attr*count+i])
	}

	normalized := true
	for i := 0; i < count && normalized; i++ {
		for a := 0; a < 4; a++ {
			if at(a, i) > 1.5 {
				normalized = false
				break
			}
		}
	}

	scaleX := float64(p.srcW) / float64(p.inputW)
	scaleY := float64(p.srcH) / float64(p.inputH)
	if normalized {
		scaleX = float64(p.srcW)
		scaleY = float64(p.srcH)
	}

	var boxes []Box
	for i := 0; i < count; i++ {
		best, bestScore := -1, 0.0
		for c := 0; c < attrs-4; c++ {
			if s := at(4+c, i); best < 0 || s > bestScore {
				best, bestScore = c, s
			}
		}
		if bestScore < p.confidence {
			continue
		}
		if len(p.classes) > 0 && !p.classes[best] {
			continue
		}

		cx, cy, w, h := at(0, i)*scaleX, at(1, i)*scaleY, at(2, i)*scaleX, at(3, i)*scaleY
		boxes = append(boxes, Box{
			X1:      math.Max(0, cx-w/2),
			Y1:      math.Max(0, cy-h/2),
			X2:      math.Min(float64(p.srcW), cx+w/2),
			Y2:      math.Min(float64(p.srcH), cy+h/2),
			Score:   bestScore,
			ClassID: best,
		})
	}
	return boxes
}

// nonMaxSuppression keeps the highest scoring box of each overlapping group,
// per class. The result is ordered by descending score.
func nonMaxSuppression(boxes []Box, threshold float64) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var kept []Box
	for _, b := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == b.ClassID && iou(k, b) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}
