// Package logstream follows the backend's log output over server-sent events
// and keeps the most recent records for display.
package logstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the connection state of a Stream.
type Status string

const (
	Disconnected Status = "disconnected"
	Connecting   Status = "connecting"
	Connected    Status = "connected"
	Errored      Status = "error"
)

// EventName is the SSE event type carrying log lines.
const EventName = "log"

// Record is one parsed log line.
type Record struct {
	ID        int    `json:"id"`
	EventID   string `json:"event_id,omitempty"`
	Timestamp string `json:"timestamp"`
	Thread    string `json:"thread"`
	Level     string `json:"level"`
	Logger    string `json:"logger"`
	Message   string `json:"message"`
	Raw       string `json:"raw"`
}

// logLine matches logback-style lines such as
// "12:30:45.123 [main] INFO  c.e.App - started".
var logLine = regexp.MustCompile(`^(?P<timestamp>\d{2}:\d{2}:\d{2}\.\d{3})\s+\[(?P<thread>[^\]]+)\]\s+(?P<level>\w+)\s+(?P<logger>[^\s-]+)\s+-\s+(?P<message>.*)$`)

// ParseLine splits a log line into its fields. Lines that do not match are
// kept whole as the message of a RAW record stamped with now.
func ParseLine(id int, line string, now time.Time) Record {
	rec := Record{ID: id, Raw: line}
	m := logLine.FindStringSubmatch(line)
	if m == nil {
		rec.Timestamp = now.Format("15:04:05")
		rec.Thread = "?"
		rec.Level = "INFO"
		rec.Logger = "RAW"
		rec.Message = line
		return rec
	}
	rec.Timestamp = m[logLine.SubexpIndex("timestamp")]
	rec.Thread = m[logLine.SubexpIndex("thread")]
	rec.Level = m[logLine.SubexpIndex("level")]
	rec.Logger = m[logLine.SubexpIndex("logger")]
	rec.Message = m[logLine.SubexpIndex("message")]
	return rec
}

// Stream is a reconnecting SSE log follower. It is safe for concurrent use.
type Stream struct {
	url    string
	client *http.Client
	delay  time.Duration
	max    int
	log    logrus.FieldLogger
	now    func() time.Time

	mu       sync.Mutex
	status   Status
	attempts int
	records  []Record
	nextID   int
	cancel   context.CancelFunc
	retry    *time.Timer
	gen      uint64
}

// New creates a disconnected Stream. After an error it reconnects once
// reconnectDelay has passed; maxRecords bounds the kept records, zero
// meaning no bound.
func New(url string, reconnectDelay time.Duration, maxRecords int, log logrus.FieldLogger) *Stream {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Stream{
		url:    url,
		client: &http.Client{},
		delay:  reconnectDelay,
		max:    maxRecords,
		log:    log,
		now:    time.Now,
		status: Disconnected,
	}
}

// URL returns the event source address.
func (s *Stream) URL() string { return s.url }

// Connect opens the stream. It does nothing while a connection is open or
// being opened. Each new connection starts with an empty record list.
func (s *Stream) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.status == Connecting {
		return
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.records = nil
	s.status = Connecting
	s.attempts++
	s.gen++

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx, s.gen)
}

// Disconnect closes the stream and cancels any pending reconnect.
func (s *Stream) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.status = Disconnected
}

// Clear drops the kept records.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// Records returns the kept records with an ID greater than sinceID.
func (s *Stream) Records(sinceID int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Record{}
	for _, r := range s.records {
		if r.ID > sinceID {
			out = append(out, r)
		}
	}
	return out
}

// Status returns the connection state.
func (s *Stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attempts counts connection attempts since the last successful open.
func (s *Stream) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Stream) run(ctx context.Context, gen uint64) {
	log := s.log.WithField("url", s.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.fail(gen, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail(gen, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.fail(gen, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = Connected
	s.attempts = 0
	s.mu.Unlock()
	log.Info("logstream: connected")

	err = readEvents(resp.Body, func(ev event) {
		if ev.name == EventName {
			s.append(gen, ev)
		}
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = io.EOF
	}
	s.fail(gen, err)
}

func (s *Stream) append(gen uint64, ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.nextID++
	rec := ParseLine(s.nextID, ev.data, s.now())
	rec.EventID = ev.id
	s.records = append(s.records, rec)
	if s.max > 0 && len(s.records) > s.max {
		s.records = append([]Record(nil), s.records[len(s.records)-s.max:]...)
	}
}

// fail moves to the error state and schedules a reconnect, unless the
// connection was superseded.
func (s *Stream) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.log.WithError(err).WithFields(logrus.Fields{"url": s.url, "attempt": s.attempts}).Warn("logstream: connection lost")
	s.status = Errored
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.retry = time.AfterFunc(s.delay, func() {
		if s.Status() == Errored {
			s.Connect()
		}
	})
}

type event struct {
	name string
	id   string
	data string
}

// readEvents parses a text/event-stream body and calls emit for every
// dispatched event.
func readEvents(r io.Reader, emit func(event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var ev event
	var data []string
	var lastID string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if data != nil {
				ev.data = strings.Join(data, "\n")
				ev.id = lastID
				if ev.name == "" {
					ev.name = "message"
				}
				emit(ev)
			}
			ev, data = event{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.name = value
		case "data":
			data = append(data, value)
		case "id":
			lastID = value
		}
	}
	return sc.Err()
}
