package recognizers

import (
	"context"
	"image"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Allowlist is the character set of container numbers and ISO codes.
const Allowlist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Fragment is one piece of text found by an OCR engine.
type Fragment struct {
	Text       string
	// Confidence is within [0,1].
	Confidence float64
}

// Engine recognizes text in an already preprocessed image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
}

type Options struct {
	// Upscale is the geometric scale factor applied before recognition; 1 disables it.
	Upscale int
	// Blur applies a light smoothing filter after upscaling.
	Blur bool
	// MinConfidence drops fragments the engine is less sure about, on the
	// same [0,1] scale as Fragment.Confidence.
	MinConfidence float64
}

type Recognizer struct {
	logger *zap.Logger
	engine Engine
	opts   Options
}

func New(engine Engine, opts Options, logger *zap.Logger) *Recognizer {
	if opts.Upscale < 1 {
		opts.Upscale = 1
	}
	return &Recognizer{logger: logger, engine: engine, opts: opts}
}

// Recognize returns the cleaned text of a crop, or "" when the crop cannot
// be read or holds no text. Failures never propagate.
func (r *Recognizer) Recognize(ctx context.Context, path string) string {
	img, err := imaging.Open(path)
	if err != nil {
		r.logger.Warn("Could not open crop", zap.String("path", path), zap.Error(err))
		return ""
	}

	fragments, err := r.engine.Recognize(ctx, r.preprocess(img))
	if err != nil {
		r.logger.Warn("OCR error", zap.String("path", path), zap.Error(err))
		return ""
	}

	var kept []Fragment
	for _, f := range fragments {
		if f.Confidence >= r.opts.MinConfidence {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		r.logger.Warn("No text detected", zap.String("path", path))
		return ""
	}

	text := CleanText(kept)
	r.logger.Info("Detected text", zap.String("path", path), zap.String("text", text))
	return text
}

func (r *Recognizer) preprocess(img image.Image) image.Image {
	if r.opts.Upscale > 1 {
		b := img.Bounds()
		img = imaging.Resize(img, b.Dx()*r.opts.Upscale, b.Dy()*r.opts.Upscale, imaging.CatmullRom)
	}
	if r.opts.Blur {
		// roughly a 3x3 box filter
		img = imaging.Blur(img, 0.8)
	}
	return img
}

var disallowed = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// CleanText joins fragments with single spaces, strips everything except
// ASCII letters, digits and whitespace, and trims the result.
func CleanText(fragments []Fragment) string {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Text
	}
	return strings.TrimSpace(disallowed.ReplaceAllString(strings.Join(parts, " "), ""))
}
