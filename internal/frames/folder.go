package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FolderStatus is a snapshot of a Folder.
type FolderStatus struct {
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
	Index   int      `json:"index"`
	Loading bool     `json:"loading"`
	Current *Frame   `json:"current,omitempty"`
}

// Folder steps through the frames of one directory.
type Folder struct {
	src *Source

	mu      sync.Mutex
	dir     string
	files   []string
	dims    Dims
	index   int
	cur     *Frame
	loading bool
	gen     uint64
}

// NewFolder creates a closed folder loader.
func NewFolder(src *Source) *Folder {
	return &Folder{src: src, index: -1}
}

// ListFrames returns the renderable files of dir in natural order.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && Accepts(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	return names, nil
}

// Open lists dir and loads its first frame. Rows and cols apply to every
// .dat frame in the folder and must be positive.
func (f *Folder) Open(ctx context.Context, dir string, dims Dims) (*Frame, error) {
	if dims.Rows <= 0 || dims.Cols <= 0 {
		return nil, fmt.Errorf("rows and cols must be positive, got %dx%d", dims.Rows, dims.Cols)
	}
	if !dims.Precision.Valid() {
		return nil, fmt.Errorf("invalid precision %d", dims.Precision)
	}
	names, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s contains no frames", ErrNoFrame, dir)
	}

	f.Close()

	f.mu.Lock()
	f.dir = dir
	f.files = names
	f.dims = dims
	f.mu.Unlock()

	return f.Load(ctx, 0)
}

// Load shows frame i. An index outside the folder clears the current frame.
// While another load is in flight the current frame is returned with ErrBusy.
// The previous frame stays on display until the new one is ready.
func (f *Folder) Load(ctx context.Context, i int) (*Frame, error) {
	f.mu.Lock()
	if f.loading {
		cur := f.cur
		f.mu.Unlock()
		return cur, ErrBusy
	}
	if i < 0 || i >= len(f.files) {
		f.src.Release(f.cur)
		f.cur = nil
		f.mu.Unlock()
		return nil, fmt.Errorf("%w %d", ErrNoFrame, i)
	}
	f.loading = true
	gen := f.gen
	path := filepath.Join(f.dir, f.files[i])
	dims := f.dims
	f.mu.Unlock()

	frame, err := f.src.Load(ctx, path, dims)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.src.Release(frame)
		return nil, ErrClosed
	}
	f.loading = false
	if err != nil {
		return nil, err
	}
	f.src.Release(f.cur)
	f.cur = frame
	f.index = i
	return frame, nil
}

// Next loads the following frame. At the last frame it returns the current
// frame unchanged.
func (f *Folder) Next(ctx context.Context) (*Frame, error) {
	f.mu.Lock()
	i, n, cur := f.index, len(f.files), f.cur
	f.mu.Unlock()
	if i+1 >= n {
		return cur, nil
	}
	return f.Load(ctx, i+1)
}

// Prev loads the preceding frame. At the first frame it returns the current
// frame unchanged.
func (f *Folder) Prev(ctx context.Context) (*Frame, error) {
	f.mu.Lock()
	i, cur := f.index, f.cur
	f.mu.Unlock()
	if i <= 0 {
		return cur, nil
	}
	return f.Load(ctx, i-1)
}

// Current returns the displayed frame, if any.
func (f *Folder) Current() (*Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur, f.cur != nil
}

// Status returns a snapshot of the folder.
func (f *Folder) Status() FolderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FolderStatus{
		Dir:     f.dir,
		Files:   append([]string(nil), f.files...),
		Index:   f.index,
		Loading: f.loading,
		Current: f.cur,
	}
}

// Close releases the current frame, forgets the folder and empties the image
// cache. A load still in flight is discarded when it completes.
func (f *Folder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.src.Release(f.cur)
	f.cur = nil
	f.dir = ""
	f.files = nil
	f.index = -1
	f.loading = false
	f.gen++
	f.src.Cache().Clear()
}
