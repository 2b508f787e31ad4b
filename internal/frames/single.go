package frames

import (
	"context"
	"sync"

	"github.com/ironsheep/frame-console-mcp/internal/imaging"
)

// Single holds the frame picked by the operator, along with the crop region
// drawn on it.
type Single struct {
	src *Source

	mu   sync.Mutex
	cur  *Frame
	crop *imaging.Region
}

// NewSingle creates an empty single-frame selection.
func NewSingle(src *Source) *Single {
	return &Single{src: src}
}

// Open replaces the current frame with the file at path. The previous frame
// is released first, so a failed open leaves the selection empty.
func (s *Single) Open(ctx context.Context, path string, dims Dims) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.src.Release(s.cur)
	s.cur = nil
	s.crop = nil

	f, err := s.src.Load(ctx, path, dims)
	if err != nil {
		return nil, err
	}
	s.cur = f
	return f, nil
}

// Close releases the current frame.
func (s *Single) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Release(s.cur)
	s.cur = nil
	s.crop = nil
}

// Current returns the selected frame, if any.
func (s *Single) Current() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, s.cur != nil
}

// SetCrop records the region of interest on the current frame.
func (s *Single) SetCrop(r imaging.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ErrNoImage
	}
	img, err := s.src.Image(s.cur)
	if err != nil {
		return err
	}
	if err := r.Within(img.Bounds()); err != nil {
		return err
	}
	s.crop = &r
	return nil
}

// Crop returns the recorded region of interest, or nil.
func (s *Single) Crop() *imaging.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crop == nil {
		return nil
	}
	r := *s.crop
	return &r
}
