package offload

import (
	"errors"
	"sync"

	"github.com/ironsheep/frame-console-mcp/internal/datgrid"
)

// Request is the single message posted to a worker.
type Request struct {
	// Buffer holds the raw samples. The worker owns it once posted.
	Buffer    []byte `json:"-"`
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	Precision string `json:"precision"`
}

// Response is the single message a worker posts back.
type Response struct {
	Success   bool   `json:"success"`
	ImageBlob []byte `json:"imageBlob,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DecodeJob is the Handler run inside a worker: decode the grid, encode the
// raster as PNG, and describe the outcome as a Response. Decode failures are
// reported in the message, never as a panic.
func DecodeJob(req Request) Response {
	p, err := datgrid.ParsePrecision(req.Precision)
	if err != nil {
		return Response{Error: err.Error()}
	}
	img, err := datgrid.Decode(req.Buffer, req.Rows, req.Cols, p)
	if err != nil {
		return Response{Error: err.Error()}
	}
	blob, err := datgrid.EncodePNG(img)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{
		Success:   true,
		ImageBlob: blob,
		Width:     req.Cols,
		Height:    req.Rows,
	}
}

// Buffer is a byte slice with move semantics. After Transfer the Buffer is
// detached and no longer exposes the bytes.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	detached bool
}

// NewBuffer wraps data. The caller gives up ownership of data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the number of bytes still owned by the buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Detached reports whether the bytes have been transferred away.
func (b *Buffer) Detached() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detached
}

// Transfer moves the bytes out of the buffer. A second Transfer, or a
// Transfer on a nil Buffer, returns nil.
func (b *Buffer) Transfer() []byte {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.data
	b.data = nil
	b.detached = true
	return data
}

// TransportError reports that a worker failed outside the decode logic.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "offload " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

var (
	// ErrWorkerClosed is reported when a worker closes its channels without
	// answering.
	ErrWorkerClosed = errors.New("worker closed without a response")

	// ErrAlreadyPosted is returned by Post on a worker that already has a job.
	ErrAlreadyPosted = errors.New("worker already has a job")

	// ErrTerminated is returned by Post on a terminated worker.
	ErrTerminated = errors.New("worker terminated")
)
