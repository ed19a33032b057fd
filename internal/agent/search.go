package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// SearchToolName is the name the model uses to call the search tool.
const SearchToolName = "search_context"

// Searcher embeds free text and retrieves matching documentation.
// *rag.Retriever is the production implementation.
type Searcher interface {
	Search(ctx context.Context, text string, topK int) (rag.Result, error)
}

var _ tool.InvokableTool = (*SearchTool)(nil)

// SearchTool is an Eino tool that lets the model pull additional context
// mid-generation. It never returns an error to the model: failures degrade
// to a not-found result so generation can continue.
type SearchTool struct {
	searcher Searcher
	topK     int
}

// searchInput is the JSON-serialisable input schema for SearchTool.
type searchInput struct {
	// SearchTerm is the term or concept to look up.
	SearchTerm string `json:"searchTerm"`

	// Reason explains why more information is needed. It is logged only.
	Reason string `json:"reason"`
}

// SearchResult is the tool output returned to the model.
type SearchResult struct {
	AdditionalContext string       `json:"additionalContext"`
	Sources           []rag.Source `json:"sources"`
	Found             bool         `json:"found"`
}

// NewSearchTool constructs a SearchTool. topK <= 0 selects rag.DefaultTopK.
func NewSearchTool(searcher Searcher, topK int) *SearchTool {
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	return &SearchTool{searcher: searcher, topK: topK}
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: SearchToolName,
		Desc: "Search for additional context when you need more information to answer the question accurately.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"searchTerm": {
				Type:     schema.String,
				Desc:     "The specific term or concept to search for in the documentation.",
				Required: true,
			},
			"reason": {
				Type:     schema.String,
				Desc:     "Why you need this additional information.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes a search from JSON arguments and returns the JSON
// encoded SearchResult.
func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.Run(ctx, argumentsInJSON).String(), nil
}

// Run performs the search described by argumentsInJSON.
func (t *SearchTool) Run(ctx context.Context, argumentsInJSON string) SearchResult {
	log := logging.FromContext(ctx)

	var in searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		log.Warn("search_context: invalid arguments", slog.String("error", err.Error()))
		return notFound()
	}
	term := strings.TrimSpace(in.SearchTerm)
	if term == "" {
		log.Warn("search_context: empty search term")
		return notFound()
	}

	log.Info("search_context: searching",
		slog.String("search_term", term),
		slog.String("reason", in.Reason),
	)

	res, err := t.searcher.Search(ctx, term, t.topK)
	if err != nil {
		log.Warn("search_context: retrieval failed",
			slog.String("search_term", term),
			slog.String("error", err.Error()),
		)
		return notFound()
	}

	found := res.ContextDocs != ""
	if res.Sources == nil {
		res.Sources = []rag.Source{}
	}
	return SearchResult{AdditionalContext: res.ContextDocs, Sources: res.Sources, Found: found}
}

// String returns the JSON encoding sent back to the model.
func (r SearchResult) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"additionalContext":"","sources":[],"found":false}`
	}
	return string(b)
}

func notFound() SearchResult {
	return SearchResult{Sources: []rag.Source{}}
}
