// Package rag defines the retrieval side of the answer pipeline: the
// embedding and vector index contracts, the retriever that combines them, and
// the pure context assembly that turns ranked matches into a prompt.
// Concrete backends (Pinecone, Qdrant, Milvus, OpenAI, Ollama) live in their
// own packages and satisfy these interfaces so the agent layer never depends
// on a specific service.
package rag

import (
	"context"
)

// Unknown is substituted for document metadata the index did not return.
const Unknown = "Unknown"

// Vector is a dense embedding. Its length is fixed by the embedding model.
// A Vector is owned by the call that produced it and is never mutated.
type Vector []float32

// Document is a single match returned by the vector index.
type Document struct {
	// Text is the chunk content used as grounding context.
	Text string

	// Title is the human-readable document title.
	Title string

	// FilePath is the origin path of the chunk in the documentation tree.
	FilePath string

	// Score is the similarity reported by the index. Higher is better; the
	// range depends on the index metric.
	Score float32
}

// Source is the citation-ready descriptor of a Document, sent to clients.
type Source struct {
	Title    string  `json:"title"`
	FilePath string  `json:"file_path"`
	Score    float32 `json:"score"`
}

// Result is the assembled output of one retrieval.
// Sources[i] describes the i-th blank-line separated segment of ContextDocs.
type Result struct {
	// ContextDocs is every match's text in rank order joined by a blank line.
	ContextDocs string

	// Sources lists the matches in the same rank order.
	Sources []Source
}

// Embedder converts text into a dense vector.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns the embedding of text. Failures wrap ErrUpstream.
	Embed(ctx context.Context, text string) (Vector, error)
}

// Index is a read-only handle to an external vector index.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Query returns up to topK matches for vec in the index's ranked order.
	// Missing metadata is returned as empty strings.
	Query(ctx context.Context, vec Vector, topK int) ([]Document, error)

	// Ping checks whether the index is reachable.
	Ping(ctx context.Context) error

	// Name returns a short backend label (e.g. "pinecone").
	Name() string

	// Close releases the underlying connection.
	Close() error
}
