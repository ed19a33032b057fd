package vectorindex

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/54b3r/ragchat-go/internal/rag"
)

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/vectorindex")

// pineconeQuerier is the subset of *pinecone.IndexConnection used here.
type pineconeQuerier interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeIndex implements rag.Index backed by a Pinecone index.
type PineconeIndex struct {
	// conn is the data-plane connection resolved from the index host.
	conn pineconeQuerier

	// name is the Pinecone index name, used in spans and errors.
	name string

	fields Fields
}

// NewPinecone resolves the index host through the control plane and opens a
// data-plane connection to it.
func NewPinecone(ctx context.Context, cfg *PineconeConfig, fields Fields) (*PineconeIndex, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to create client: %w", err)
	}

	desc, err := pc.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to describe index %q: %w", cfg.IndexName, err)
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: desc.Host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to connect to index %q: %w", cfg.IndexName, err)
	}

	return &PineconeIndex{conn: conn, name: cfg.IndexName, fields: fields}, nil
}

// Query returns the topK nearest matches with their metadata.
func (p *PineconeIndex) Query(ctx context.Context, vec rag.Vector, topK int) ([]rag.Document, error) {
	ctx, span := tracer.Start(ctx, "pinecone.Query", trace.WithAttributes(
		attribute.String("index", p.name),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	res, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("pinecone: query failed: %w", err)
	}

	docs := make([]rag.Document, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil {
			continue
		}
		docs = append(docs, pineconeDocument(m, p.fields))
	}
	return docs, nil
}

// pineconeDocument extracts text and citation metadata from a match.
// Non-string metadata values read as empty.
func pineconeDocument(m *pinecone.ScoredVector, f Fields) rag.Document {
	doc := rag.Document{Score: m.Score}
	if m.Vector == nil || m.Vector.Metadata == nil {
		return doc
	}
	md := m.Vector.Metadata.GetFields()
	doc.Text = md[f.Text].GetStringValue()
	doc.Title = md[f.Title].GetStringValue()
	doc.FilePath = md[f.Path].GetStringValue()
	return doc
}

// Ping fetches index stats as a reachability probe.
func (p *PineconeIndex) Ping(ctx context.Context) error {
	if _, err := p.conn.DescribeIndexStats(ctx); err != nil {
		return fmt.Errorf("pinecone: describe stats failed: %w", err)
	}
	return nil
}

// Name returns "pinecone".
func (p *PineconeIndex) Name() string { return string(BackendPinecone) }

// Close closes the data-plane connection.
func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}
