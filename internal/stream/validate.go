package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frame is one decoded SSE frame.
type Frame struct {
	Kind Kind
	Data string
}

// Parse decodes SSE frames from r. Comment lines and unknown fields are
// skipped; multi-line data is joined with "\n".
func Parse(r io.Reader) ([]Frame, error) {
	var (
		frames []Frame
		cur    Frame
		data   []string
	)
	flush := func() {
		if cur.Kind != "" || len(data) > 0 {
			cur.Data = strings.Join(data, "\n")
			frames = append(frames, cur)
		}
		cur, data = Frame{}, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			cur.Kind = Kind(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return frames, fmt.Errorf("stream: read frames: %w", err)
	}
	flush()
	return frames, nil
}

// Kinds returns the event kinds of frames in order.
func Kinds(frames []Frame) []Kind {
	out := make([]Kind, len(frames))
	for i, f := range frames {
		out[i] = f.Kind
	}
	return out
}

// CheckOrder reports whether kinds form a well-ordered stream:
//
//	sources (token | tool_context)* (end | error)
//	error
func CheckOrder(kinds []Kind) error {
	if len(kinds) == 0 {
		return fmt.Errorf("stream: empty stream")
	}
	if len(kinds) == 1 && kinds[0] == KindError {
		return nil
	}
	if kinds[0] != KindSources {
		return fmt.Errorf("stream: first event is %q, want %q", kinds[0], KindSources)
	}
	last := len(kinds) - 1
	for i, k := range kinds[1:last] {
		if k != KindToken && k != KindToolContext {
			return fmt.Errorf("stream: event %d is %q, want token or tool_context", i+1, k)
		}
	}
	if k := kinds[last]; k != KindEnd && k != KindError {
		return fmt.Errorf("stream: last event is %q, want end or error", k)
	}
	return nil
}
