// Package sources turns an image location into local image files.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Resolve expands location into image paths. A file is returned as is, a
// directory yields its images sorted by name, and an http(s) URL is
// downloaded into downloadDir: either the image itself or every image
// referenced by the page.
func Resolve(ctx context.Context, location, downloadDir string, logger *zap.Logger) ([]string, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return download(ctx, location, downloadDir, logger)
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("image source %s: %w", location, err)
	}
	if !info.IsDir() {
		return []string{location}, nil
	}
	return ListImages(location)
}

// ListImages returns the images directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory %s: %w", dir, err)
	}

	var images []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

func download(ctx context.Context, location, downloadDir string, logger *zap.Logger) ([]string, error) {
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	c := colly.NewCollector(colly.MaxDepth(2))
	c.MaxBodySize = 50 << 20
	c.SetRequestTimeout(30 * time.Second)

	var (
		mu     sync.Mutex
		saved  []string
		errs   []error
		pageOK bool
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("img[src]", func(e *colly.HTMLElement) {
		// Repeated sources come back as already visited
		if err := e.Request.Visit(e.Attr("src")); err != nil {
			logger.Debug("Skipping image", zap.String("src", e.Attr("src")), zap.Error(err))
		}
	})

	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		pageOK = true

		contentType := r.Headers.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return
		}

		target := filepath.Join(downloadDir, fmt.Sprintf("%03d_%s", len(saved)+1, imageName(r.Request.URL.Path, contentType)))
		if err := r.Save(target); err != nil {
			errs = append(errs, err)
			return
		}
		logger.Info("Downloaded image", zap.String("url", r.Request.URL.String()), zap.String("path", target))
		saved = append(saved, target)
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
	})

	if err := c.Visit(location); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !pageOK && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		logger.Warn("Image download failed", zap.Error(err))
	}
	return saved, nil
}

// imageName derives a local file name from a URL path, falling back to
// "image" when the path does not end in a usable name.
func imageName(urlPath, contentType string) string {
	name := path.Base(urlPath)
	if name == "/" || name == "." || name == ".." {
		name = "image"
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if !IsImage(name) {
		name += extensionFor(contentType)
	}
	return name
}

func extensionFor(contentType string) string {
	if strings.HasPrefix(contentType, "image/png") {
		return ".png"
	}
	return ".jpg"
}
