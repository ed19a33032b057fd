package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultTopK is the number of matches requested when callers pass 0.
	DefaultTopK = 3

	// DefaultQueryTimeout bounds a single vector index query.
	DefaultQueryTimeout = 15 * time.Second
)

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/rag")

// RetrieverConfig holds the tunables for a Retriever.
type RetrieverConfig struct {
	// TopK is the default match count. Defaults to DefaultTopK.
	TopK int

	// QueryTimeout bounds each index query. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// Retriever embeds queries and searches the vector index behind a Handle.
type Retriever struct {
	// embedder converts query text to a vector.
	embedder Embedder

	// index is the shared vector index handle.
	index *Handle[Index]

	topK    int
	timeout time.Duration
}

// NewRetriever constructs a Retriever. cfg may be nil to accept defaults.
func NewRetriever(embedder Embedder, index *Handle[Index], cfg *RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index handle must not be nil")
	}
	r := &Retriever{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
		timeout:  DefaultQueryTimeout,
	}
	if cfg != nil {
		if cfg.TopK > 0 {
			r.topK = cfg.TopK
		}
		if cfg.QueryTimeout > 0 {
			r.timeout = cfg.QueryTimeout
		}
	}
	return r, nil
}

// TopK returns the default match count.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve queries the index with vec and assembles the matches.
// topK <= 0 selects the configured default. A query with zero matches returns
// a Result with empty Sources and an error wrapping ErrEmptyResult.
func (r *Retriever) Retrieve(ctx context.Context, vec Vector, topK int) (Result, error) {
	if len(vec) == 0 {
		return Result{}, fmt.Errorf("rag: query vector is empty: %w", ErrValidation)
	}
	if topK <= 0 {
		topK = r.topK
	}

	idx, err := r.index.Get(ctx)
	if err != nil {
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "rag.retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("rag.index", idx.Name()),
		attribute.Int("rag.top_k", topK),
	)

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	docs, err := idx.Query(qctx, vec, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index query failed")
		return Result{}, fmt.Errorf("rag: %s query failed: %w: %w", idx.Name(), ErrUpstream, err)
	}
	span.SetAttributes(attribute.Int("rag.matches", len(docs)))

	if len(docs) == 0 {
		return Result{Sources: []Source{}}, fmt.Errorf("rag: %s returned 0 matches: %w", idx.Name(), ErrEmptyResult)
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return Assemble(normalize(docs)), nil
}

// Search embeds text and retrieves the best matches for it.
func (r *Retriever) Search(ctx context.Context, text string, topK int) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("rag: search text is empty: %w", ErrValidation)
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	return r.Retrieve(ctx, vec, topK)
}

// normalize fills missing metadata with Unknown.
func normalize(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		if d.Title == "" {
			d.Title = Unknown
		}
		if d.FilePath == "" {
			d.FilePath = Unknown
		}
		out[i] = d
	}
	return out
}
