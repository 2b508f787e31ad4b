// Package notify holds the operator-facing notification line of a console
// session.
//
// A Notifier is constructed once per session and handed to every component
// that reports to the operator. Only one message is visible at a time: Show
// replaces the current message and restarts its hide timer.
package notify

import (
	"sync"
	"time"
)

// DefaultDuration is how long a message stays visible when Show is given a
// non-positive duration.
const DefaultDuration = 1500 * time.Millisecond

// State is a snapshot of the notification line.
type State struct {
	Show    bool      `json:"show"`
	Message string    `json:"message"`
	Since   time.Time `json:"since,omitempty"`
}

// Listener receives every state change.
type Listener func(State)

// Notifier is safe for concurrent use.
type Notifier struct {
	mu        sync.Mutex
	state     State
	timer     *time.Timer
	gen       uint64
	duration  time.Duration
	listeners []Listener
	now       func() time.Time
}

// New creates a Notifier whose messages default to the given duration.
func New(duration time.Duration) *Notifier {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Notifier{duration: duration, now: time.Now}
}

// Subscribe registers l for all future state changes. Listeners are called
// outside the Notifier's lock, in subscription order.
func (n *Notifier) Subscribe(l Listener) {
	n.mu.Lock()
	n.listeners = append(n.listeners, l)
	n.mu.Unlock()
}

// Show displays msg for d, or for the default duration when d <= 0.
func (n *Notifier) Show(msg string, d time.Duration) {
	n.mu.Lock()
	if d <= 0 {
		d = n.duration
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.state = State{Show: true, Message: msg, Since: n.now()}
	n.timer = time.AfterFunc(d, func() { n.hide(gen) })
	st, ls := n.state, n.snapshotListeners()
	n.mu.Unlock()

	notifyAll(ls, st)
}

// Notify is Show with the default duration.
func (n *Notifier) Notify(msg string) {
	n.Show(msg, 0)
}

// hide clears the line unless a newer message replaced it.
func (n *Notifier) hide(gen uint64) {
	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.state = State{}
	n.timer = nil
	st, ls := n.state, n.snapshotListeners()
	n.mu.Unlock()

	notifyAll(ls, st)
}

// State returns the current notification line.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Close stops the hide timer. The current message stays visible.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
}

func (n *Notifier) snapshotListeners() []Listener {
	return append([]Listener(nil), n.listeners...)
}

func notifyAll(ls []Listener, st State) {
	for _, l := range ls {
		l(st)
	}
}
