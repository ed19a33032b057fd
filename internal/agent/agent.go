// Package agent turns a retrieved context into a streamed answer. The
// Generator drives an eino tool-calling chat model, relaying tokens as they
// arrive and servicing search_context tool calls in between passes; the
// Pipeline runs the initial retrieval in front of it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/54b3r/ragchat-go/internal/budget"
	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/stream"
)

// DefaultMaxToolRounds bounds how many model passes may request tools before
// the search tool is withdrawn and the model must answer.
const DefaultMaxToolRounds = 5

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/agent")

// Config holds the dependencies for a Generator.
type Config struct {
	// ChatModel is the LLM backend. Required.
	ChatModel model.ToolCallingChatModel

	// Searcher backs the search_context tool. When nil, or when
	// DisableSearchTool is set, the model answers from the initial context only.
	Searcher Searcher

	// DisableSearchTool turns off mid-generation retrieval.
	DisableSearchTool bool

	// TopK is the match count used by the search tool.
	TopK int

	// MaxToolRounds caps tool-calling passes. Defaults to DefaultMaxToolRounds.
	MaxToolRounds int

	// MaxContextTokens is the estimated input budget per pass. Older tool
	// rounds are dropped to stay under it. Defaults to
	// budget.DefaultMaxContextTokens; negative disables trimming.
	MaxContextTokens int
}

// Generator streams model answers for a prompt.
type Generator struct {
	// bare is the model without tools, used for the final forced pass.
	bare model.ToolCallingChatModel

	// withTools is bare with search_context bound, or nil.
	withTools model.ToolCallingChatModel

	tool      *SearchTool
	maxRounds int
	maxTokens int
}

// NewGenerator constructs a Generator and binds the search tool when enabled.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	g := &Generator{bare: cfg.ChatModel, maxRounds: cfg.MaxToolRounds, maxTokens: cfg.MaxContextTokens}
	if g.maxRounds <= 0 {
		g.maxRounds = DefaultMaxToolRounds
	}
	if g.maxTokens == 0 {
		g.maxTokens = budget.DefaultMaxContextTokens
	}

	if cfg.Searcher != nil && !cfg.DisableSearchTool {
		g.tool = NewSearchTool(cfg.Searcher, cfg.TopK)
		info, err := g.tool.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("agent: failed to describe search tool: %w", err)
		}
		bound, err := cfg.ChatModel.WithTools([]*schema.ToolInfo{info})
		if err != nil {
			return nil, fmt.Errorf("agent: failed to bind search tool: %w", err)
		}
		g.withTools = bound
	}
	return g, nil
}

// Generate returns the lazy event sequence of one answer: zero or more token
// and tool_context events followed by exactly one end or error event.
// Stopping the iteration early cancels nothing outside ctx; the caller owns
// cancellation.
func (g *Generator) Generate(ctx context.Context, pc rag.PromptContext) iter.Seq[stream.Event] {
	return func(yield func(stream.Event) bool) {
		log := logging.FromContext(ctx)
		fixed := []*schema.Message{
			schema.SystemMessage(pc.System),
			schema.UserMessage(pc.Prompt()),
		}
		var rounds [][]*schema.Message

		for round := 0; ; round++ {
			toolsAllowed := g.withTools != nil && round < g.maxRounds
			cm := g.bare
			if toolsAllowed {
				cm = g.withTools
			}

			var dropped int
			rounds, dropped = budget.TrimRounds(fixed, rounds, g.maxTokens)
			if dropped > 0 {
				log.Debug("agent: dropped old tool rounds to fit context budget",
					slog.Int("dropped", dropped),
					slog.Int("max_tokens", g.maxTokens),
				)
			}

			msg, ok, err := g.pass(ctx, cm, budget.Flatten(fixed, rounds), round, yield)
			if !ok {
				return
			}
			if err != nil {
				log.Error("agent: generation failed", slog.Int("round", round), slog.String("error", err.Error()))
				yield(stream.Error(fmt.Sprintf("failed to generate answer: %v", err)))
				return
			}
			if len(msg.ToolCalls) == 0 || !toolsAllowed {
				yield(stream.End())
				return
			}

			exchange := []*schema.Message{msg}
			for _, tc := range msg.ToolCalls {
				res := g.runTool(ctx, tc)
				if !yield(stream.ToolContext(res.Found, res.Sources)) {
					return
				}
				exchange = append(exchange, schema.ToolMessage(res.String(), tc.ID))
			}
			rounds = append(rounds, exchange)
		}
	}
}

// runTool executes one tool call. Calls to unknown tools read as not found.
func (g *Generator) runTool(ctx context.Context, tc schema.ToolCall) SearchResult {
	if tc.Function.Name != SearchToolName {
		logging.FromContext(ctx).Warn("agent: model called unknown tool", slog.String("tool", tc.Function.Name))
		return notFound()
	}
	return g.tool.Run(ctx, tc.Function.Arguments)
}

// pass streams one model turn. Token events are yielded as they arrive; the
// concatenated assistant message is returned for tool-call inspection.
// ok is false when the consumer stopped iterating.
func (g *Generator) pass(ctx context.Context, cm model.ToolCallingChatModel, msgs []*schema.Message, round int, yield func(stream.Event) bool) (*schema.Message, bool, error) {
	ctx, span := tracer.Start(ctx, "agent.pass")
	defer span.End()
	span.SetAttributes(attribute.Int("agent.round", round))

	sr, err := cm.Stream(ctx, msgs)
	if err != nil {
		span.RecordError(err)
		return nil, true, fmt.Errorf("%w: model stream failed: %w", rag.ErrUpstream, err)
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return nil, true, fmt.Errorf("%w: model stream receive: %w", rag.ErrUpstream, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if !yield(stream.Token(chunk.Content)) {
				return nil, false, nil
			}
		}
	}

	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), true, nil
	}
	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, true, fmt.Errorf("agent: concat stream chunks: %w", err)
	}
	span.SetAttributes(attribute.Int("agent.tool_calls", len(msg.ToolCalls)))
	return msg, true, nil
}
