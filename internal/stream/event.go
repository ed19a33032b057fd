// Package stream defines the events of one streamed answer and the
// Server-Sent Events session that delivers them to an HTTP client.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Kind names an event. It doubles as the SSE "event:" field.
type Kind string

const (
	// KindSources carries the citations of the initial retrieval. It is
	// always the first event of a successful stream.
	KindSources Kind = "sources"

	// KindToken carries one fragment of generated text.
	KindToken Kind = "token"

	// KindToolContext reports the outcome of a search_context tool call.
	KindToolContext Kind = "tool_context"

	// KindEnd terminates a successful stream.
	KindEnd Kind = "end"

	// KindError terminates a failed stream.
	KindError Kind = "error"
)

// Event is one element of an answer stream. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind    Kind
	Sources []rag.Source
	Token   string
	Found   bool
	Message string
}

// Sources returns a sources event. A nil slice is sent as [].
func Sources(s []rag.Source) Event {
	if s == nil {
		s = []rag.Source{}
	}
	return Event{Kind: KindSources, Sources: s}
}

// Token returns a token event.
func Token(t string) Event { return Event{Kind: KindToken, Token: t} }

// ToolContext returns a tool_context event.
func ToolContext(found bool, s []rag.Source) Event {
	if s == nil {
		s = []rag.Source{}
	}
	return Event{Kind: KindToolContext, Found: found, Sources: s}
}

// End returns the successful terminal event.
func End() Event { return Event{Kind: KindEnd} }

// Error returns the failed terminal event.
func Error(msg string) Event { return Event{Kind: KindError, Message: msg} }

// Terminal reports whether the event ends a stream.
func (e Event) Terminal() bool { return e.Kind == KindEnd || e.Kind == KindError }

type tokenPayload struct {
	Token string `json:"token"`
}

type toolContextPayload struct {
	Found   bool         `json:"found"`
	Sources []rag.Source `json:"sources"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// payload returns the JSON body of the event's data line.
func (e Event) payload() (any, error) {
	switch e.Kind {
	case KindSources:
		return Sources(e.Sources).Sources, nil
	case KindToken:
		return tokenPayload{Token: e.Token}, nil
	case KindToolContext:
		return toolContextPayload{Found: e.Found, Sources: ToolContext(e.Found, e.Sources).Sources}, nil
	case KindEnd:
		return struct{}{}, nil
	case KindError:
		return errorPayload{Error: e.Message}, nil
	default:
		return nil, fmt.Errorf("stream: unknown event kind %q", e.Kind)
	}
}

// Encode renders the event as one SSE frame:
//
//	event: <kind>
//	data: <json>
//	<blank line>
func Encode(e Event) ([]byte, error) {
	p, err := e.payload()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal %s payload: %w", e.Kind, err)
	}
	frame := make([]byte, 0, len(e.Kind)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, e.Kind...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
