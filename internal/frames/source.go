// Package frames tracks the frame an operator is looking at.
//
// Single holds one frame chosen from disk. Folder walks the frames of a
// directory in natural name order. Both load through a Source, which renders
// standard images directly and sends raw .dat grids to the offload decoder.
// Each manager owns the display handle of its current frame and revokes it
// when the frame is replaced or closed.
package frames

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/frame-console-mcp/internal/datgrid"
	"github.com/ironsheep/frame-console-mcp/internal/handle"
	"github.com/ironsheep/frame-console-mcp/internal/imaging"
	"github.com/ironsheep/frame-console-mcp/internal/notify"
	"github.com/ironsheep/frame-console-mcp/internal/offload"
)

var (
	// ErrNoImage is returned when a frame could not be rendered.
	ErrNoImage = errors.New("no image")
	// ErrNoFrame is returned for a frame index outside the loaded folder.
	ErrNoFrame = errors.New("no frame at index")
	// ErrBusy is returned while another folder frame is still loading.
	ErrBusy = errors.New("a frame is already loading")
	// ErrUnsupported is returned for files that are neither images nor grids.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrClosed is returned when a folder is closed while a frame loads.
	ErrClosed = errors.New("folder closed")
)

// Kind tells how a frame was rendered.
type Kind string

const (
	KindImage Kind = "image"
	KindDat   Kind = "dat"
)

// Dims carries the grid shape for .dat frames. Standard images ignore it.
type Dims struct {
	Rows      int
	Cols      int
	Precision datgrid.Precision
}

// Frame is a loaded, displayable frame.
type Frame struct {
	Path      string                `json:"path"`
	Name      string                `json:"name"`
	MD5       string                `json:"md5"`
	Kind      Kind                  `json:"kind"`
	Rows      int                   `json:"rows,omitempty"`
	Cols      int                   `json:"cols,omitempty"`
	Precision string                `json:"precision,omitempty"`
	Handle    *handle.DisplayHandle `json:"handle"`
}

// Source renders files into frames.
type Source struct {
	decoder *offload.Decoder
	notes   *notify.Notifier
	cache   *imaging.ImageCache
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewSource creates a Source. notes may be nil. A positive timeout bounds the
// wait for each .dat decode; the decode itself is never cancelled.
func NewSource(dec *offload.Decoder, notes *notify.Notifier, timeout time.Duration, log logrus.FieldLogger) *Source {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Source{
		decoder: dec,
		notes:   notes,
		cache:   imaging.NewImageCache(),
		timeout: timeout,
		log:     log,
	}
}

// Handles returns the registry holding the rendered frames.
func (s *Source) Handles() *handle.Registry { return s.decoder.Handles() }

// Cache returns the decoded image cache.
func (s *Source) Cache() *imaging.ImageCache { return s.cache }

// Accepts reports whether path names a file the Source can render.
func Accepts(path string) bool {
	return imaging.IsImageFile(path) || datgrid.IsDatFile(path)
}

func (s *Source) notify(msg string) {
	if s.notes != nil {
		s.notes.Notify(msg)
	}
}

// Load renders the file at path.
func (s *Source) Load(ctx context.Context, path string, dims Dims) (*Frame, error) {
	switch {
	case imaging.IsImageFile(path):
		return s.loadImage(path)
	case datgrid.IsDatFile(path):
		return s.loadDat(ctx, path, dims)
	default:
		s.notify("Unsupported file type")
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
}

func (s *Source) loadImage(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	sum := md5.Sum(data)

	img, ok := s.cache.Get(path)
	if !ok {
		if img, err = datgrid.DecodeContainer(data); err != nil {
			s.notify("Failed to load image")
			return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
		}
		s.cache.Put(path, img)
	}

	b := img.Bounds()
	h := s.Handles().Create(data, imaging.MimeType(path), b.Dx(), b.Dy())
	return &Frame{
		Path:   path,
		Name:   filepath.Base(path),
		MD5:    hex.EncodeToString(sum[:]),
		Kind:   KindImage,
		Handle: h,
	}, nil
}

func (s *Source) loadDat(ctx context.Context, path string, dims Dims) (*Frame, error) {
	sum, err := fileMD5(path)
	if err != nil {
		return nil, err
	}
	data, err := datgrid.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"path": path, "rows": dims.Rows, "cols": dims.Cols, "precision": dims.Precision.String()}
	fut := s.decoder.DecodeAsync(offload.NewBuffer(data), dims.Rows, dims.Cols, dims.Precision)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	h, err := fut.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// The worker is still running; drop whatever it produces.
			go s.discard(fut)
		}
		s.log.WithFields(fields).WithError(err).Error("frames: decode did not complete")
		s.notify("Failed to decode frame")
		return nil, err
	}
	if h == nil {
		s.notify("Failed to decode frame")
		return nil, fmt.Errorf("%w: %s", ErrNoImage, filepath.Base(path))
	}

	s.log.WithFields(fields).WithField("url", h.URL).Debug("frames: frame ready")
	return &Frame{
		Path:      path,
		Name:      filepath.Base(path),
		MD5:       sum,
		Kind:      KindDat,
		Rows:      dims.Rows,
		Cols:      dims.Cols,
		Precision: dims.Precision.String(),
		Handle:    h,
	}, nil
}

// discard revokes the handle of an abandoned decode once it arrives.
func (s *Source) discard(fut *offload.Future) {
	if h, _ := fut.Wait(context.Background()); h != nil {
		s.Handles().Revoke(h.URL)
	}
}

// Release revokes the frame's handle and forgets its cached image.
func (s *Source) Release(f *Frame) {
	if f == nil {
		return
	}
	if f.Handle != nil {
		s.Handles().Revoke(f.Handle.URL)
		s.cache.Evict(f.Handle.URL)
	}
	s.cache.Evict(f.Path)
}

// Image returns the rendered pixels of f.
func (s *Source) Image(f *Frame) (image.Image, error) {
	if f == nil {
		return nil, ErrNoImage
	}
	if f.Kind == KindImage {
		return s.cache.Load(f.Path)
	}

	key := f.Handle.URL
	if img, ok := s.cache.Get(key); ok {
		return img, nil
	}
	data, _, ok := s.Handles().Resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: handle %s was revoked", ErrNoImage, key)
	}
	img, err := datgrid.DecodeContainer(data)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, img)
	return img, nil
}

// Sample returns the raw grid value at (row, col) of a .dat frame.
func (s *Source) Sample(f *Frame, row, col int) (float64, error) {
	if f == nil || f.Kind != KindDat {
		return 0, fmt.Errorf("raw samples are only available for .dat frames")
	}
	p, err := datgrid.ParsePrecision(f.Precision)
	if err != nil {
		return 0, err
	}
	data, err := datgrid.ReadFile(f.Path)
	if err != nil {
		return 0, err
	}
	return datgrid.SampleAt(data, f.Rows, f.Cols, p, row, col)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash frame: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// naturalLess orders names case-insensitively with digit runs compared by
// numeric value, so frame2 sorts before frame10.
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		switch {
		case da && db:
			na, ra := digitRun(a)
			nb, rb := digitRun(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = ra, rb
		case a[0] != b[0]:
			return a[0] < b[0]
		default:
			a, b = a[1:], b[1:]
		}
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func digitRun(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}
