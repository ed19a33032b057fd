package stream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFlushable is returned by NewSession when the writer cannot flush.
var ErrNotFlushable = errors.New("stream: response writer does not support flushing")

type state int

const (
	stateIdle state = iota
	stateOpen
	stateStreaming
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpen:
		return "open"
	case stateStreaming:
		return "streaming"
	default:
		return "closed"
	}
}

// Session is one client's SSE channel. It moves Idle -> Open -> Streaming ->
// Closed. Headers are written exactly once by Open, every frame is flushed
// as soon as it is written, and nothing is written after a terminal event.
// A Session is not safe for concurrent use; one goroutine drives it.
type Session struct {
	w       http.ResponseWriter
	flusher http.Flusher
	state   state
}

// NewSession wraps w. It fails when w cannot flush, before anything is
// written, so the caller can still reply with a normal HTTP error.
func NewSession(w http.ResponseWriter) (*Session, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotFlushable
	}
	return &Session{w: w, flusher: f}, nil
}

// Open writes the event-stream headers and flushes them.
// It panics if called twice.
func (s *Session) Open() {
	if s.state != stateIdle {
		panic(fmt.Sprintf("stream: Open called in state %s", s.state))
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	s.state = stateOpen
}

// Emit writes and flushes one frame. A terminal event closes the session.
// A write error also closes it and is returned; the caller should stop
// producing. Emit panics when the session is not open or already closed.
func (s *Session) Emit(e Event) error {
	switch s.state {
	case stateIdle:
		panic("stream: Emit before Open")
	case stateClosed:
		panic(fmt.Sprintf("stream: Emit(%s) after close", e.Kind))
	}

	frame, err := Encode(e)
	if err != nil {
		return err
	}
	s.state = stateStreaming
	if _, err := s.w.Write(frame); err != nil {
		s.state = stateClosed
		return fmt.Errorf("stream: write %s frame: %w", e.Kind, err)
	}
	s.flusher.Flush()
	if e.Terminal() {
		s.state = stateClosed
	}
	return nil
}

// Close marks the session closed. It is idempotent.
func (s *Session) Close() { s.state = stateClosed }

// Closed reports whether the session accepts no more events.
func (s *Session) Closed() bool { return s.state == stateClosed }
