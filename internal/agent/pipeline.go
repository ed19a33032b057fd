package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/stream"
)

// PipelineConfig holds the tunables for a Pipeline.
type PipelineConfig struct {
	// SystemPrompt overrides SystemPrompt when non-empty.
	SystemPrompt string

	// TopK is the initial retrieval match count. 0 selects the retriever default.
	TopK int
}

// Pipeline answers one question: embed, retrieve, emit sources, generate.
type Pipeline struct {
	searcher  Searcher
	generator *Generator
	system    string
	topK      int
}

// NewPipeline constructs a Pipeline. cfg may be nil.
func NewPipeline(searcher Searcher, generator *Generator, cfg *PipelineConfig) (*Pipeline, error) {
	if searcher == nil {
		return nil, fmt.Errorf("agent: searcher must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("agent: generator must not be nil")
	}
	p := &Pipeline{searcher: searcher, generator: generator, system: SystemPrompt}
	if cfg != nil {
		if cfg.SystemPrompt != "" {
			p.system = cfg.SystemPrompt
		}
		p.topK = cfg.TopK
	}
	return p, nil
}

// Answer returns the event sequence for query. A successful stream is
// sources, then tokens and tool contexts, then end. When the initial
// embedding or retrieval fails the stream is a single error event. Zero
// matches are not a failure: sources is empty and the model answers from an
// empty context.
func (p *Pipeline) Answer(ctx context.Context, query string) iter.Seq[stream.Event] {
	return func(yield func(stream.Event) bool) {
		log := logging.FromContext(ctx)

		query = strings.TrimSpace(query)
		if query == "" {
			yield(stream.Error("message is required"))
			return
		}

		res, err := p.searcher.Search(ctx, query, p.topK)
		switch {
		case errors.Is(err, rag.ErrEmptyResult):
			log.Info("agent: no matching documents; answering from empty context")
			res = rag.Result{Sources: []rag.Source{}}
		case err != nil:
			log.Error("agent: initial retrieval failed", slog.String("error", err.Error()))
			yield(stream.Error(userMessage(err)))
			return
		}

		log.Debug("agent: retrieved context",
			slog.Int("sources", len(res.Sources)),
			slog.Int("context_bytes", len(res.ContextDocs)),
		)
		if !yield(stream.Sources(res.Sources)) {
			return
		}

		for ev := range p.generator.Generate(ctx, rag.BuildPrompt(p.system, res, query)) {
			if !yield(ev) {
				return
			}
		}
	}
}

// userMessage maps an internal error to the text sent to the client.
func userMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled or timed out while retrieving context"
	case errors.Is(err, rag.ErrValidation):
		return "invalid question"
	case errors.Is(err, rag.ErrNotInitialized):
		return "service is not ready"
	case errors.Is(err, rag.ErrUpstream):
		return "failed to retrieve documentation context: an upstream service is unavailable"
	default:
		return "failed to retrieve documentation context"
	}
}
