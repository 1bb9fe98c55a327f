package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createTestImage writes a solid-color PNG into a temp dir and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "test-image.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestLoadImage(t *testing.T) {
	path := createTestImage(t, 40, 30, color.RGBA{255, 0, 0, 255})

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestLoadImage_DecodeError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.png")

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		notFound bool
	}{
		{"missing file", missing, true},
		{"invalid data", garbage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadImage(tt.path)
			if err == nil {
				t.Fatal("LoadImage should fail")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error is %T, want *DecodeError", err)
			}
			if de.Path != tt.path {
				t.Errorf("Path: got %q, want %q", de.Path, tt.path)
			}
			if de.NotFound() != tt.notFound {
				t.Errorf("NotFound: got %v, want %v", de.NotFound(), tt.notFound)
			}
		})
	}
}

func TestSaveImage_RoundTrip(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	img.SetGray(3, 2, color.Gray{Y: 200})

	path := filepath.Join(t.TempDir(), "nested", "out.png")
	if err := SaveImage(img, path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	loaded, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	g := ToGray(loaded)
	if g.GrayAt(3, 2).Y != 200 {
		t.Errorf("pixel (3,2): got %d, want 200", g.GrayAt(3, 2).Y)
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_Load_Invalid(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load("/nonexistent/path/to/image.png")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if cache.Len() != 0 {
		t.Error("failed load should not be cached")
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	a := createTestImage(t, 10, 10, color.White)
	b := createTestImage(t, 12, 12, color.Black)

	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	cache.Evict(a)
	cache.Evict("/nonexistent/path")
	if cache.Len() != 1 {
		t.Errorf("after Evict: got %d entries, want 1", cache.Len())
	}

	cache.Evict(b)
	if cache.Len() != 0 {
		t.Errorf("after evicting both: got %d entries, want 0", cache.Len())
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	path := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadImageInfo(cache, path)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}

	if info.Width != 200 || info.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
	if info.SuggestedMaxRadius != 75 {
		t.Errorf("SuggestedMaxRadius: got %d, want 75", info.SuggestedMaxRadius)
	}
}

func TestLoadImageInfo_FormatDetection(t *testing.T) {
	tests := []struct {
		ext    string
		format string
	}{
		{".png", "png"},
		{".jpg", "jpeg"},
		{".JPEG", "jpeg"},
		{".gif", "gif"},
		{".xyz", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test-format"+tt.ext)

			// PNG content regardless of extension; decoding sniffs the bytes.
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("failed to create file: %v", err)
			}
			png.Encode(f, image.NewGray(image.Rect(0, 0, 10, 10)))
			f.Close()

			info, err := LoadImageInfo(NewImageCache(), path)
			if err != nil {
				t.Fatalf("LoadImageInfo failed: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format for %s: got %s, want %s", tt.ext, info.Format, tt.format)
			}
		})
	}
}
