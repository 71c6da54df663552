// Package tesseract recognizes text with the Tesseract OCR engine.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"container-tracker/workers/detection/recognizers"

	"github.com/otiai10/gosseract/v2"
)

// Engine owns one Tesseract client; calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func New(languages []string) (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR languages %s: %w", strings.Join(languages, ","), err)
	}
	if err := client.SetWhitelist(recognizers.Allowlist); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR allow-list: %w", err)
	}
	// a crop is a single block of text
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Engine{client: client}, nil
}

func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]recognizers.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}

	fragments := make([]recognizers.Fragment, 0, len(boxes))
	for _, b := range boxes {
		if text := strings.TrimSpace(b.Word); text != "" {
			// Tesseract reports confidence as a percentage
			fragments = append(fragments, recognizers.Fragment{Text: text, Confidence: b.Confidence / 100})
		}
	}
	return fragments, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
