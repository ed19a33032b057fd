package vectorindex

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// MilvusIndex implements rag.Index backed by a Milvus collection with an
// HNSW index on a float vector field and VarChar metadata fields.
type MilvusIndex struct {
	milvus client.Client
	cfg    *MilvusConfig
	fields Fields
}

// NewMilvus connects to the Milvus proxy at cfg.Address.
func NewMilvus(ctx context.Context, cfg *MilvusConfig, fields Fields) (*MilvusIndex, error) {
	mc := client.Config{Address: cfg.Address, APIKey: cfg.APIKey}
	if cfg.Username != "" && cfg.Password != "" {
		mc.Username = cfg.Username
		mc.Password = cfg.Password
	}

	c, err := client.NewClient(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("milvus: failed to connect to %s: %w", cfg.Address, err)
	}
	return &MilvusIndex{milvus: c, cfg: cfg, fields: fields}, nil
}

// Query runs a cosine ANN search and reads the metadata columns of each hit.
func (m *MilvusIndex) Query(ctx context.Context, vec rag.Vector, topK int) ([]rag.Document, error) {
	ctx, span := tracer.Start(ctx, "milvus.Query", trace.WithAttributes(
		attribute.String("collection", m.cfg.Collection),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	sp, err := entity.NewIndexHNSWSearchParam(m.cfg.SearchEF)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("milvus: failed to create search param: %w", err)
	}

	results, err := m.milvus.Search(ctx,
		m.cfg.Collection,
		nil,
		"",
		[]string{m.fields.Text, m.fields.Title, m.fields.Path},
		[]entity.Vector{entity.FloatVector(vec)},
		m.cfg.VectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("milvus: search failed: %w", err)
	}

	return milvusDocuments(results, m.fields), nil
}

// milvusDocuments flattens search results into documents in rank order.
// Failed result sets are skipped.
func milvusDocuments(results []client.SearchResult, f Fields) []rag.Document {
	docs := []rag.Document{}
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		text := result.Fields.GetColumn(f.Text)
		title := result.Fields.GetColumn(f.Title)
		path := result.Fields.GetColumn(f.Path)
		for i := 0; i < result.ResultCount && i < len(result.Scores); i++ {
			docs = append(docs, rag.Document{
				Text:     varCharAt(text, i),
				Title:    varCharAt(title, i),
				FilePath: varCharAt(path, i),
				Score:    result.Scores[i],
			})
		}
	}
	return docs
}

// varCharAt returns the i-th value of a VarChar column or "" when the column
// is absent or has another type.
func varCharAt(col entity.Column, i int) string {
	vc, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return ""
	}
	data := vc.Data()
	if i >= len(data) {
		return ""
	}
	return data[i]
}

// Ping checks that the configured collection exists.
func (m *MilvusIndex) Ping(ctx context.Context) error {
	ok, err := m.milvus.HasCollection(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("milvus: health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("milvus: collection %q does not exist", m.cfg.Collection)
	}
	return nil
}

// Name returns "milvus".
func (m *MilvusIndex) Name() string { return string(BackendMilvus) }

// Close closes the Milvus connection.
func (m *MilvusIndex) Close() error {
	return m.milvus.Close()
}
