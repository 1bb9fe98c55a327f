package render

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/monitoring"
)

// Sink receives intermediate and final images of a run. Whether an image is
// shown, written to disk or kept in memory is up to the implementation.
type Sink interface {
	DisplayOrSave(name string, img image.Image) error
}

// DisplayError reports an image that a Sink could not take.
type DisplayError struct {
	Name string
	Err  error
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("failed to display %q: %v", e.Name, e.Err)
}

func (e *DisplayError) Unwrap() error { return e.Err }

// Publish hands img to sink and reports whether it was accepted. Errors and
// panics from the sink are logged as a *DisplayError and never propagate, so
// a broken sink cannot fail a detection run.
func Publish(sink Sink, name string, img image.Image) bool {
	if sink == nil {
		return false
	}
	err := safeDisplay(sink, name, img)
	if err == nil {
		return true
	}
	var de *DisplayError
	if !errors.As(err, &de) {
		de = &DisplayError{Name: name, Err: err}
	}
	monitoring.Logf("%v", de)
	return false
}

func safeDisplay(sink Sink, name string, img image.Image) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	if img == nil {
		return fmt.Errorf("nil image")
	}
	return sink.DisplayOrSave(name, img)
}

// FileSink writes every image to Dir as <Prefix><name>.png. A name that
// already carries a supported extension keeps it.
type FileSink struct {
	Dir    string
	Prefix string
}

// Path returns where name would be written.
func (s *FileSink) Path(name string) string {
	base := filepath.Base(filepath.Clean(name))
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
	default:
		base += ".png"
	}
	return filepath.Join(s.Dir, s.Prefix+base)
}

func (s *FileSink) DisplayOrSave(name string, img image.Image) error {
	path := s.Path(name)
	if err := imaging.SaveImage(img, path); err != nil {
		return err
	}
	monitoring.Debugf("saved %s", path)
	return nil
}

// MemorySink keeps images in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	images map[string]image.Image
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{images: make(map[string]image.Image)}
}

func (s *MemorySink) DisplayOrSave(name string, img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		s.images = make(map[string]image.Image)
	}
	s.images[name] = img
	return nil
}

// Get returns the image stored under name.
func (s *MemorySink) Get(name string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[name]
	return img, ok
}

// Names returns the stored names in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.images))
	for name := range s.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
