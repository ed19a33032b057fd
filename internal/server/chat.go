package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/stream"
)

// maxChatBody caps the request body size.
const maxChatBody = 1 << 20

// handleChat handles POST /api/chat. The request is validated before the
// stream opens, so malformed input gets an ordinary 400. Once open, every
// outcome is reported in-band and the stream always ends with exactly one
// end or error frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		s.observeChat(outcomeInvalid, start)
		writeError(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}
	query, err := req.query()
	if err != nil {
		s.observeChat(outcomeInvalid, start)
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := stream.NewSession(w)
	if err != nil {
		s.observeChat(outcomeError, start)
		writeError(r.Context(), w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "server.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.id", req.ID),
		attribute.Int("chat.messages", len(req.Messages)),
	)

	log = log.With(slog.String("chat_id", req.ID))
	ctx = logging.WithLogger(ctx, log)
	log.Info("chat started", slog.Int("query_len", len(query)))

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	sess.Open()
	outcome := s.stream(ctx, sess, query)

	if outcome != outcomeOK {
		span.SetStatus(codes.Error, outcome)
	}
	s.observeChat(outcome, start)
	log.Info("chat finished",
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)
}

// stream forwards the answer's events to sess and returns the outcome label.
// When the producer stops without a terminal event, an error frame is
// written so the client is never left waiting.
func (s *Server) stream(ctx context.Context, sess *stream.Session, query string) string {
	log := logging.FromContext(ctx)
	outcome := outcomeOK

	for ev := range s.answerer.Answer(ctx, query) {
		if err := sess.Emit(ev); err != nil {
			log.Warn("chat: client went away", slog.Any("error", err))
			return outcomeDisconnected
		}
		s.metrics.chatFramesTotal.WithLabelValues(string(ev.Kind)).Inc()
		switch ev.Kind {
		case stream.KindToolContext:
			s.metrics.toolCallsTotal.WithLabelValues(strconv.FormatBool(ev.Found)).Inc()
		case stream.KindError:
			outcome = outcomeError
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				outcome = outcomeTimeout
			}
		}
		if sess.Closed() {
			return outcome
		}
	}

	msg, outcome := "answer stream ended unexpectedly", outcomeError
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg, outcome = "request timed out", outcomeTimeout
	}
	log.Warn("chat: stream ended without a terminal event", slog.String("outcome", outcome))
	if err := sess.Emit(stream.Error(msg)); err != nil {
		return outcomeDisconnected
	}
	s.metrics.chatFramesTotal.WithLabelValues(string(stream.KindError)).Inc()
	return outcome
}

// observeChat records the request counter and duration for one chat.
func (s *Server) observeChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
