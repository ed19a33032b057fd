// Package server exposes the chat pipeline over HTTP: a streaming
// POST /api/chat endpoint plus welcome, liveness, readiness and metrics
// routes. The server is started by the `ragchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/version"
)

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/server")

// Server defaults.
const (
	defaultPort            = 3001
	defaultChatTimeout     = 5 * time.Minute
	defaultChatRateLimit   = 20
	defaultGlobalRateLimit = 200
	defaultWelcomeMessage  = "Welcome to the documentation chat API"
)

// New constructs a Server that answers chat requests with a.
func New(a Answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)

	s := &Server{
		answerer: a,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	chatRL, stopChat := newRateLimiter(perMinute(cfg.ChatRateLimit, 1), cfg.ChatRateLimit, s.log)
	globalRL, stopGlobal := newRateLimiter(perMinute(cfg.GlobalRateLimit, 15), cfg.GlobalRateLimit, s.log)
	s.stopRL = func() {
		stopChat()
		stopGlobal()
	}

	mux := http.NewServeMux()
	s.route(mux, "POST /api/chat", chatRL.middleware(http.HandlerFunc(s.handleChat)))
	s.route(mux, "GET /{$}", http.HandlerFunc(s.handleWelcome))
	s.route(mux, "GET /health", http.HandlerFunc(s.handleHealth))
	s.route(mux, "GET /api/health", http.HandlerFunc(s.handleHealth))
	s.route(mux, "GET /api/ready", http.HandlerFunc(s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	handler := requestLogger(s.log, globalRL.middleware(mux))
	handler = cors.AllowAll().Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// applyDefaults fills zero fields of cfg.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = defaultChatTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.ChatTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.ChatRateLimit <= 0 {
		cfg.ChatRateLimit = defaultChatRateLimit
	}
	if cfg.GlobalRateLimit <= 0 {
		cfg.GlobalRateLimit = defaultGlobalRateLimit
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = defaultWelcomeMessage
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleWelcome handles GET /.
func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: s.cfg.WelcomeMessage})
}

// handleHealth handles GET /health and GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

// writeJSON writes v as the response body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes a JSON error body.
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}
