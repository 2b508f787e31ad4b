package offload

import (
	"fmt"
	"sync"
)

// Worker is one background execution unit. It accepts a single Request and
// answers with a single Response, or reports its own failure on Errors.
type Worker interface {
	Post(req Request) error
	Messages() <-chan Response
	Errors() <-chan error
	Terminate()
}

// Spawner starts a new Worker.
type Spawner func() (Worker, error)

// Handler is the job a goroutine worker runs.
type Handler func(Request) Response

// GoroutineSpawner returns a Spawner whose workers run h on a fresh
// goroutine.
func GoroutineSpawner(h Handler) Spawner {
	return func() (Worker, error) {
		if h == nil {
			return nil, fmt.Errorf("no handler configured")
		}
		return &goroutineWorker{
			handle:   h,
			messages: make(chan Response, 1),
			errs:     make(chan error, 1),
		}, nil
	}
}

type goroutineWorker struct {
	handle   Handler
	messages chan Response
	errs     chan error

	mu         sync.Mutex
	posted     bool
	terminated bool
}

func (w *goroutineWorker) Post(req Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated {
		return ErrTerminated
	}
	if w.posted {
		return ErrAlreadyPosted
	}
	w.posted = true
	go w.run(req)
	return nil
}

// run sends on buffered channels so it never blocks, even after Terminate.
func (w *goroutineWorker) run(req Request) {
	defer func() {
		if r := recover(); r != nil {
			w.errs <- fmt.Errorf("worker panic: %v", r)
		}
	}()
	w.messages <- w.handle(req)
}

func (w *goroutineWorker) Messages() <-chan Response { return w.messages }

func (w *goroutineWorker) Errors() <-chan error { return w.errs }

// Terminate marks the worker dead. A goroutine cannot be killed; a job still
// running finishes on its own and its result is dropped.
func (w *goroutineWorker) Terminate() {
	w.mu.Lock()
	w.terminated = true
	w.mu.Unlock()
}
