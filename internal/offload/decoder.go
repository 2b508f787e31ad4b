package offload

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/frame-console-mcp/internal/datgrid"
	"github.com/ironsheep/frame-console-mcp/internal/handle"
)

// State tracks one DecodeAsync call.
type State int

const (
	Idle State = iota
	Dispatched
	Succeeded
	Failed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatched:
		return "dispatched"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Future is the pending result of a DecodeAsync call.
type Future struct {
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	state  State
	handle *handle.DisplayHandle
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) dispatch() {
	f.mu.Lock()
	if f.state == Idle {
		f.state = Dispatched
	}
	f.mu.Unlock()
}

func (f *Future) resolve(state State, h *handle.DisplayHandle, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.state = state
		f.handle = h
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// Done is closed once the call reaches a terminal state.
func (f *Future) Done() <-chan struct{} { return f.done }

// State returns the current state of the call.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Wait blocks until the call completes or ctx is done. A decode failure
// yields (nil, nil); a broken worker yields a *TransportError. If ctx expires
// first Wait returns ctx.Err() and the call keeps running; Wait may be
// called again. A settled call returns its outcome even when ctx is
// already done.
func (f *Future) Wait(ctx context.Context) (*handle.DisplayHandle, error) {
	select {
	case <-f.done:
		return f.outcome()
	default:
	}
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) outcome() (*handle.DisplayHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle, f.err
}

// Decoder moves frame decoding onto background workers.
type Decoder struct {
	spawn   Spawner
	handles *handle.Registry
	log     logrus.FieldLogger
}

// Option customizes a Decoder.
type Option func(*Decoder)

// WithSpawner replaces the default goroutine spawner.
func WithSpawner(s Spawner) Option {
	return func(d *Decoder) { d.spawn = s }
}

// WithLogger sets the logger used for decode failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Decoder) { d.log = l }
}

// NewDecoder creates a Decoder that registers successful results in handles.
func NewDecoder(handles *handle.Registry, opts ...Option) *Decoder {
	d := &Decoder{
		spawn:   GoroutineSpawner(DecodeJob),
		handles: handles,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handles returns the registry that receives decoded frames.
func (d *Decoder) Handles() *handle.Registry { return d.handles }

// DecodeAsync dispatches one decode to a fresh worker. buf is detached
// before the worker sees it, whatever the outcome.
func (d *Decoder) DecodeAsync(buf *Buffer, rows, cols int, p datgrid.Precision) *Future {
	f := newFuture()
	data := buf.Transfer()

	w, err := d.spawn()
	if err != nil {
		d.log.WithError(err).Error("offload: failed to start worker")
		f.resolve(Errored, nil, &TransportError{Op: "spawn", Err: err})
		return f
	}

	f.dispatch()
	req := Request{Buffer: data, Rows: rows, Cols: cols, Precision: p.String()}
	if err := w.Post(req); err != nil {
		w.Terminate()
		d.log.WithError(err).Error("offload: failed to post job")
		f.resolve(Errored, nil, &TransportError{Op: "post", Err: err})
		return f
	}

	go d.await(f, w, rows, cols, p)
	return f
}

// await receives the single outcome of w, terminates it, and resolves f.
func (d *Decoder) await(f *Future, w Worker, rows, cols int, p datgrid.Precision) {
	fields := logrus.Fields{"rows": rows, "cols": cols, "precision": p.String()}

	select {
	case resp, ok := <-w.Messages():
		w.Terminate()
		if !ok {
			f.resolve(Errored, nil, &TransportError{Op: "receive", Err: ErrWorkerClosed})
			return
		}
		if resp.Success && resp.ImageBlob != nil {
			h := d.handles.Create(resp.ImageBlob, datgrid.PNGMimeType, resp.Width, resp.Height)
			d.log.WithFields(fields).WithField("url", h.URL).Debug("offload: frame decoded")
			f.resolve(Succeeded, h, nil)
			return
		}
		d.log.WithFields(fields).WithField("error", resp.Error).Warn("offload: decode failed")
		f.resolve(Failed, nil, nil)

	case err, ok := <-w.Errors():
		w.Terminate()
		if !ok {
			err = ErrWorkerClosed
		}
		d.log.WithFields(fields).WithError(err).Error("offload: worker error")
		f.resolve(Errored, nil, &TransportError{Op: "worker", Err: err})
	}
}
