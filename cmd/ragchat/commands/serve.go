package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/tracing"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the HTTP
// chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragchat HTTP API",
		Long: `Start the ragchat HTTP API.

POST /api/chat streams an answer as text/event-stream frames: sources first,
then tokens (with tool_context frames when the model searches again), then
exactly one end or error frame. GET /api/health and GET /api/ready report
liveness and dependency readiness; GET /metrics exposes Prometheus metrics.

The vector index connects in the background; /api/ready returns 503 until
it is reachable.

Examples:
  ragchat serve
  ragchat serve --port 8080
  VECTOR_BACKEND=qdrant QDRANT_COLLECTION=docs ragchat serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win over RAGCHAT_HOST and RAGCHAT_PORT, which may come from
			// the config file loaded after flag defaults were bound.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("RAGCHAT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("RAGCHAT_PORT", port)
			}

			if flush, ok := tracing.SetupLangfuse(tracing.LangfuseConfigFromEnv()); ok {
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			shutdownOTel, err := tracing.SetupOTel(ctx, tracing.OTelConfigFromEnv())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownOTel(flushCtx); err != nil {
					log.Warn("otel: shutdown failed", slog.Any("error", err))
				}
			}()

			deps, err := buildPipeline(ctx, log, false)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.close(log)

			srv, err := server.New(deps.pipeline, &server.Config{
				Host:          host,
				Port:          port,
				Logger:        log,
				Pingers:       deps.pingers,
				ChatRateLimit: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: RAGCHAT_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 3001, "TCP port to listen on (env: RAGCHAT_PORT)")

	return cmd
}
