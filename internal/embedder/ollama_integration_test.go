//go:build integration

package embedder

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := emb.Embed(ctx, "How do I configure the port in config.ts?")
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	b, err := emb.Embed(ctx, "What license is the project released under?")
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("dimensions differ: %d vs %d", len(a), len(b))
	}
	if slices.Equal(a, b) {
		t.Error("embeddings for different questions are identical; model may not be working correctly")
	}

	// The index must have been built with the same dimension.
	t.Logf("model=%s dim=%d", model, len(a))
}
