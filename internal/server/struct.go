package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragchat-go/internal/stream"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 3001).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a whole streamed answer.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one /api/chat answer end to end (default: 5m).
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks.
	Pingers []Pinger
	// ChatRateLimit is the number of /api/chat requests allowed per client
	// per minute. Defaults to 20.
	ChatRateLimit int
	// GlobalRateLimit is the number of requests to any route allowed per
	// client per 15 minutes. Defaults to 200.
	GlobalRateLimit int
	// WelcomeMessage is returned by GET /.
	WelcomeMessage string
	// MetricsRegistry receives the server's collectors. Defaults to
	// [prometheus.DefaultRegisterer].
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// [prometheus.DefaultGatherer].
	MetricsGatherer prometheus.Gatherer
}

// Answerer produces the event stream for one question.
// *agent.Pipeline satisfies it; tests inject a fake.
type Answerer interface {
	Answer(ctx context.Context, query string) iter.Seq[stream.Event]
}

// Server is the HTTP front end of the chat pipeline.
type Server struct {
	// answerer handles every /api/chat request.
	answerer Answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiters' eviction goroutines on shutdown.
	stopRL func()
}

// chatMessage is one turn of the conversation sent by the client.
type chatMessage struct {
	// Role is user, assistant or system. Empty means user.
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// ID identifies the conversation. Logged only.
	ID string `json:"id,omitempty"`
	// Messages is the conversation so far; the last entry is the question.
	Messages []chatMessage `json:"messages"`
}

// validRoles lists the accepted message roles.
var validRoles = map[string]bool{"user": true, "assistant": true, "system": true}

// Request validation errors, returned to the client verbatim.
var (
	errNoMessages   = errors.New("messages must contain at least one message")
	errEmptyMessage = errors.New("message is required")
)

// query validates the request and returns the question to answer.
func (r *chatRequest) query() (string, error) {
	if len(r.Messages) == 0 {
		return "", errNoMessages
	}
	for i := range r.Messages {
		role := strings.ToLower(r.Messages[i].Role)
		if role == "" {
			role = "user"
		}
		if !validRoles[role] {
			return "", fmt.Errorf("messages[%d].role must be one of user, assistant, system", i)
		}
		r.Messages[i].Role = role
	}
	q := strings.TrimSpace(r.Messages[len(r.Messages)-1].Content)
	if q == "" {
		return "", errEmptyMessage
	}
	return q, nil
}

// errorResponse is the JSON body of every non-streamed error.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the JSON body of GET /.
type messageResponse struct {
	Message string `json:"message"`
}

// healthResponse is the JSON body of GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
