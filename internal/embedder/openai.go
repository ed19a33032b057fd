package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/ragchat-go/internal/rag"
)

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/embedder")

// EinoEmbedder adapts an eino embedding.Embedder to rag.Embedder.
// It is safe for concurrent use.
type EinoEmbedder struct {
	inner   embedding.Embedder
	model   string
	timeout time.Duration
}

// NewOpenAIEmbedder constructs an embedder for OpenAI or, when cfg.Backend is
// azure, for an Azure OpenAI deployment.
func NewOpenAIEmbedder(ctx context.Context, cfg *Config) (*EinoEmbedder, error) {
	ec := &einoopenai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Backend == BackendAzure {
		ec.ByAzure = true
		ec.APIVersion = cfg.APIVersion
	}
	if cfg.Dimensions > 0 {
		dims := cfg.Dimensions
		ec.Dimensions = &dims
	}

	inner, err := einoopenai.NewEmbedder(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("embedder: failed to create %s embedder: %w", cfg.Backend, err)
	}
	return newEinoEmbedder(inner, cfg.Model, cfg.Timeout), nil
}

func newEinoEmbedder(inner embedding.Embedder, model string, timeout time.Duration) *EinoEmbedder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &EinoEmbedder{inner: inner, model: model, timeout: timeout}
}

// Embed returns the embedding of text. Blank text wraps rag.ErrValidation
// and makes no request; every other failure wraps rag.ErrUpstream.
func (e *EinoEmbedder) Embed(ctx context.Context, text string) (rag.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedder: %s: text is empty: %w", e.model, rag.ErrValidation)
	}
	ctx, span := tracer.Start(ctx, "embedder.Embed", trace.WithAttributes(
		attribute.String("embedding.model", e.model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.inner.EmbedStrings(ctx, []string{text})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedder: %s: %w: %w", e.model, rag.ErrUpstream, err)
	}
	if len(out) != 1 || len(out[0]) == 0 {
		return nil, fmt.Errorf("embedder: %s returned %d embeddings for 1 input: %w", e.model, len(out), rag.ErrUpstream)
	}

	vec := make(rag.Vector, len(out[0]))
	for i, f := range out[0] {
		vec[i] = float32(f)
	}
	span.SetAttributes(attribute.Int("embedding.dimensions", len(vec)))
	return vec, nil
}
