package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/54b3r/ragchat-go/internal/agent"
	"github.com/54b3r/ragchat-go/internal/budget"
	"github.com/54b3r/ragchat-go/internal/cache"
	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/server"
	"github.com/54b3r/ragchat-go/internal/vectorindex"
)

// pipelineDeps is everything a command needs to answer questions.
type pipelineDeps struct {
	pipeline *agent.Pipeline
	// index is the shared vector index handle.
	index *rag.Handle[rag.Index]
	// pingers backs GET /api/ready.
	pingers []server.Pinger
	// closers run in reverse order on shutdown.
	closers []func() error
}

// close releases every client in reverse construction order.
func (d *pipelineDeps) close(log *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn("shutdown: close failed", slog.Any("error", err))
		}
	}
}

// ragSettings are the retrieval and generation knobs read from env.
type ragSettings struct {
	topK          int
	queryTimeout  time.Duration
	searchTool    bool
	maxToolRounds int
	maxTokens     int
}

// ragSettingsFromEnv reads the RAG_* and AGENT_* variables.
func ragSettingsFromEnv() ragSettings {
	s := ragSettings{
		topK:          getEnvInt("RAG_TOP_K", rag.DefaultTopK),
		queryTimeout:  rag.DefaultQueryTimeout,
		searchTool:    true,
		maxToolRounds: getEnvInt("AGENT_MAX_TOOL_ROUNDS", agent.DefaultMaxToolRounds),
		maxTokens:     getEnvInt("AGENT_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
	}
	if d, err := time.ParseDuration(os.Getenv("RAG_QUERY_TIMEOUT")); err == nil && d > 0 {
		s.queryTimeout = d
	}
	if v, err := strconv.ParseBool(os.Getenv("RAG_SEARCH_TOOL")); err == nil {
		s.searchTool = v
	}
	return s
}

// buildPipeline validates every component's configuration, then constructs
// the chat model, embedder (optionally cached in Redis), vector index handle,
// retriever, generator and pipeline. When eager is false the index connection
// is established in the background and readiness reports it as not ready
// until it completes.
func buildPipeline(ctx context.Context, log *slog.Logger, eager bool) (*pipelineDeps, error) {
	providerCfg := provider.ConfigFromEnv()
	embedCfg := embedder.ConfigFromEnv()
	indexCfg := vectorindex.ConfigFromEnv()
	for _, v := range []interface{ Validate() error }{providerCfg, embedCfg, indexCfg} {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	deps := &pipelineDeps{}

	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	embedder.Preflight(log, embedCfg)
	emb, err := embedder.New(ctx, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", embedCfg.Backend),
		slog.String("model", embedCfg.Model),
	)

	if redisCfg := cache.RedisConfigFromEnv(); redisCfg.Enabled() {
		store, err := cache.NewRedis(ctx, redisCfg)
		if err != nil {
			log.Warn("embedding cache disabled: redis unreachable",
				slog.String("addr", redisCfg.Addr),
				slog.Any("error", err),
			)
		} else {
			emb = embedder.NewCached(emb, cache.New(store, redisCfg.TTL, log), embedCfg.Model)
			deps.pingers = append(deps.pingers, server.PingFunc("redis", store.Ping))
			deps.closers = append(deps.closers, store.Close)
			log.Info("embedding cache enabled", slog.String("addr", redisCfg.Addr), slog.Duration("ttl", redisCfg.TTL))
		}
	}

	deps.index = rag.NewHandle[rag.Index](string(indexCfg.Backend))
	deps.pingers = append([]server.Pinger{server.NewIndexPinger(deps.index)}, deps.pingers...)
	connect := func(ctx context.Context) (rag.Index, error) {
		idx, err := vectorindex.New(ctx, indexCfg)
		if err != nil {
			return nil, err
		}
		log.Info("vector index connected", slog.String("backend", idx.Name()))
		return idx, nil
	}
	if eager {
		if err := deps.index.Init(ctx, connect); err != nil {
			return nil, err
		}
	} else {
		go func() {
			if err := initWithRetry(ctx, deps.index, connect, newConnectBackOff(), log); err != nil {
				log.Error("vector index initialisation abandoned", slog.Any("error", err))
			}
		}()
	}
	deps.closers = append(deps.closers, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		idx, err := deps.index.Get(closeCtx)
		if err != nil {
			return nil
		}
		return idx.Close()
	})

	settings := ragSettingsFromEnv()
	retriever, err := rag.NewRetriever(emb, deps.index, &rag.RetrieverConfig{
		TopK:         settings.topK,
		QueryTimeout: settings.queryTimeout,
	})
	if err != nil {
		return nil, err
	}

	gen, err := agent.NewGenerator(ctx, &agent.Config{
		ChatModel:         chatModel,
		Searcher:          retriever,
		DisableSearchTool: !settings.searchTool,
		TopK:              settings.topK,
		MaxToolRounds:     settings.maxToolRounds,
		MaxContextTokens:  settings.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	deps.pipeline, err = agent.NewPipeline(retriever, gen, &agent.PipelineConfig{TopK: settings.topK})
	if err != nil {
		return nil, err
	}
	log.Info("pipeline ready",
		slog.Int("top_k", settings.topK),
		slog.Bool("search_tool", settings.searchTool),
		slog.Int("max_tool_rounds", settings.maxToolRounds),
		slog.Int("max_context_tokens", settings.maxTokens),
	)
	return deps, nil
}

// newConnectBackOff is the retry schedule for background connects: 1s
// doubling to 1m, with no overall deadline.
func newConnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// initWithRetry initializes h with connect, retrying failed attempts on b
// until one succeeds or ctx is done. Configuration errors are not retried.
// While it retries, readers of h see the last attempt's error.
func initWithRetry[T any](ctx context.Context, h *rag.Handle[T], connect func(context.Context) (T, error), b backoff.BackOff, log *slog.Logger) error {
	op := func() error {
		err := h.Init(ctx, connect)
		if errors.Is(err, rag.ErrConfig) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("connect failed; retrying",
			slog.String("handle", h.Name()),
			slog.Duration("retry_in", wait),
			slog.Any("error", err),
		)
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as a positive int, or fallback.
func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
