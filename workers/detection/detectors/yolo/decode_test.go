package yolo

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// head builds a [1, 4+nc, n] output from per-anchor rows of cx, cy, w, h, scores...
// Rows are padded with empty anchors so that n exceeds 4+nc as in real exports.
func head(rows ...[]float32) ([]float32, []int) {
	attrs := len(rows[0])
	count := max(len(rows), 2*attrs)
	data := make([]float32, attrs*count)
	for i, row := range rows {
		for a, v := range row {
			data[a*count+i] = v
		}
	}
	return data, []int{1, attrs, count}
}

func TestDecodePixelCoordinates(t *testing.T) {
	// three classes, input 640x640, source 1280x640
	data, dims := head(
		[]float32{100, 200, 40, 20, 0.1, 0.9, 0.0},
		[]float32{300, 300, 50, 50, 0.2, 0.3, 0.1},
		[]float32{500, 100, 20, 20, 0.0, 0.1, 0.8},
	)

	boxes := decode(data, dims, decodeParams{
		inputW: 640, inputH: 640, srcW: 1280, srcH: 640,
		confidence: 0.5,
	})

	require.Len(t, boxes, 2)
	assert.Equal(t, 1, boxes[0].ClassID)
	assert.InDelta(t, 0.9, boxes[0].Score, 1e-6)
	assert.InDelta(t, 160, boxes[0].X1, 1e-6)
	assert.InDelta(t, 190, boxes[0].Y1, 1e-6)
	assert.InDelta(t, 240, boxes[0].X2, 1e-6)
	assert.InDelta(t, 210, boxes[0].Y2, 1e-6)
	assert.Equal(t, 2, boxes[1].ClassID)
}

func TestDecodeNormalizedTransposedAndFiltered(t *testing.T) {
	rows := [][]float32{
		{0.5, 0.5, 0.2, 0.1, 0.7, 0.1},
		{0.25, 0.25, 0.1, 0.1, 0.1, 0.95},
	}
	// transposed layout [1, n, 4+nc] with n > 4+nc
	var data []float32
	for i := 0; i < 8; i++ {
		row := []float32{0.1, 0.1, 0.01, 0.01, 0, 0}
		if i < len(rows) {
			row = rows[i]
		}
		data = append(data, row...)
	}

	boxes := decode(data, []int{1, 8, 6}, decodeParams{
		inputW: 320, inputH: 320, srcW: 1000, srcH: 500,
		confidence: 0.5,
		classes:    map[int]bool{1: true},
	})

	require.Len(t, boxes, 1)
	assert.Equal(t, 1, boxes[0].ClassID)
	assert.InDelta(t, 200, boxes[0].X1, 1e-4)
	assert.InDelta(t, 100, boxes[0].Y1, 1e-4)
	assert.InDelta(t, 300, boxes[0].X2, 1e-4)
	assert.InDelta(t, 150, boxes[0].Y2, 1e-4)
}

func TestDecodeClampsToImage(t *testing.T) {
	data, dims := head([]float32{5, 5, 20, 20, 0.9})
	boxes := decode(data, dims, decodeParams{inputW: 100, inputH: 100, srcW: 100, srcH: 100, confidence: 0.5})

	require.Len(t, boxes, 1)
	assert.Zero(t, boxes[0].X1)
	assert.Zero(t, boxes[0].Y1)
}

func TestDecodeRejectsUnexpectedShape(t *testing.T) {
	assert.Nil(t, decode([]float32{1, 2, 3}, []int{3}, decodeParams{}))
	assert.Nil(t, decode(make([]float32, 8), []int{1, 4, 2}, decodeParams{}))
}

func TestNonMaxSuppressionPerClass(t *testing.T) {
	boxes := []Box{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.6, ClassID: 0},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, Score: 0.9, ClassID: 0},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, Score: 0.8, ClassID: 1},
		{X1: 50, Y1: 50, X2: 60, Y2: 60, Score: 0.7, ClassID: 0},
	}

	kept := nonMaxSuppression(boxes, 0.45)

	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Score, 1e-9)
	assert.Equal(t, 1, kept[1].ClassID, "other classes are not suppressed")
	assert.InDelta(t, 0.7, kept[2].Score, 1e-9)
}

func TestBoxRect(t *testing.T) {
	b := Box{X1: 1.5, Y1: 2.2, X2: 9.1, Y2: 120}
	assert.Equal(t, image.Rect(1, 2, 10, 100), b.Rect(image.Rect(0, 0, 100, 100)))
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("owner_code\ncontainer_number\n"), 0o644))

	labels, err := loadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner_code", "container_number"}, labels)

	labels, err = loadLabels("")
	require.NoError(t, err)
	assert.Nil(t, labels)
}

func TestFillInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix, []uint8{255, 0, 51, 255, 0, 255, 0, 255})

	dst := make([]float32, 6)
	fillInput(dst, img)

	assert.InDeltaSlice(t, []float32{1, 0, 0.2, 0, 1, 0}, dst, 1e-6)
}
