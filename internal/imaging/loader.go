package imaging

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// DecodeError reports an image that could not be read or decoded. It is fatal
// for a detection run: nothing downstream can proceed without pixels.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NotFound reports whether the underlying cause is a missing file.
func (e *DecodeError) NotFound() bool {
	return errors.Is(e.Err, fs.ErrNotExist)
}

// LoadImage reads and decodes a single image. PNG, JPEG, GIF, BMP and TIFF are
// supported. Failures are returned as *DecodeError.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// SaveImage encodes img to path, choosing the format from the extension.
func SaveImage(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ImageCache keeps decoded images keyed by path so the tool server can run
// several detections against one file without re-reading it.
//
// ImageCache is safe for concurrent use. Cached images stay in memory until
// they are evicted.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load returns the cached image for path, decoding it on first use. The cache
// key is the exact path string, so relative and absolute spellings of the same
// file are separate entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Evict drops one cached image. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo describes a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format comes from the file extension: "png", "jpeg", "gif", "bmp",
	// "tiff" or "unknown".
	Format string `json:"format"`

	// Grayscale is true when the decoded image is already single-channel.
	Grayscale bool `json:"grayscale"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// SuggestedMaxRadius is half the shorter side, the largest circle that
	// fits entirely in the frame.
	SuggestedMaxRadius int `json:"suggested_max_radius"`
}

// LoadImageInfo loads path through cache and reports its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".bmp":
		format = "bmp"
	case ".tif", ".tiff":
		format = "tiff"
	}

	grayscale := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		grayscale = true
	}

	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}

	return &ImageInfo{
		Width:              bounds.Dx(),
		Height:             bounds.Dy(),
		Format:             format,
		Grayscale:          grayscale,
		FileSizeBytes:      stat.Size(),
		SuggestedMaxRadius: side / 2,
	}, nil
}
