package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// qdrantQuerier is the subset of *qdrant.Client used here.
type qdrantQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// QdrantIndex implements rag.Index backed by an existing Qdrant collection.
// The collection is populated by the offline ingestion job and never written.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client qdrantQuerier

	collection string
	fields     Fields
}

// NewQdrant creates a Qdrant client for cfg. The gRPC connection is lazy, so
// an unreachable server surfaces on the first Query or Ping.
func NewQdrant(cfg *QdrantConfig, fields Fields) (*QdrantIndex, error) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantIndex{client: client, collection: cfg.Collection, fields: fields}, nil
}

// Query performs a similarity search and returns the topK matches with payload.
func (q *QdrantIndex) Query(ctx context.Context, vec rag.Vector, topK int) ([]rag.Document, error) {
	ctx, span := tracer.Start(ctx, "qdrant.Query", trace.WithAttributes(
		attribute.String("collection", q.collection),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]rag.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, qdrantDocument(p, q.fields))
	}
	return docs, nil
}

// qdrantDocument maps one scored point. Missing or non-string payload values
// read as "".
func qdrantDocument(p *qdrant.ScoredPoint, f Fields) rag.Document {
	payload := p.GetPayload()
	return rag.Document{
		Text:     payload[f.Text].GetStringValue(),
		Title:    payload[f.Title].GetStringValue(),
		FilePath: payload[f.Path].GetStringValue(),
		Score:    p.GetScore(),
	}
}

// Ping calls the Qdrant health check endpoint.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Name returns "qdrant".
func (q *QdrantIndex) Name() string { return string(BackendQdrant) }

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
