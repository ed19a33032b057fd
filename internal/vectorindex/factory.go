package vectorindex

import (
	"context"
	"fmt"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// New validates cfg and connects to the selected backend.
func New(ctx context.Context, cfg *Config) (rag.Index, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vectorindex: config must not be nil: %w", rag.ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendPinecone:
		return NewPinecone(ctx, &cfg.Pinecone, cfg.Fields)
	case BackendQdrant:
		return NewQdrant(&cfg.Qdrant, cfg.Fields)
	case BackendMilvus:
		return NewMilvus(ctx, &cfg.Milvus, cfg.Fields)
	default:
		return nil, fmt.Errorf("vectorindex: unknown backend %q: %w", cfg.Backend, rag.ErrConfig)
	}
}
