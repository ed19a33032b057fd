package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/stream"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// script is the shared state behind scriptedModel and its tool-bound copies.
type script struct {
	mu sync.Mutex
	// turns holds the streamed chunks of each successive Stream call. Calls
	// past the end replay the last turn.
	turns [][]*schema.Message
	// err is returned from Stream when set.
	err error
	// inputs records the messages of every Stream call.
	inputs [][]*schema.Message
	// toolsBound records whether tools were bound on every Stream call.
	toolsBound []bool
}

// scriptedModel implements model.ToolCallingChatModel from a fixed script.
type scriptedModel struct {
	s     *script
	tools []*schema.ToolInfo
}

func newScriptedModel(turns ...[]*schema.Message) *scriptedModel {
	return &scriptedModel{s: &script{turns: turns}}
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	sr, err := m.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	defer sr.Close()
	var chunks []*schema.Message
	for {
		c, err := sr.Recv()
		if err != nil {
			break
		}
		chunks = append(chunks, c)
	}
	return schema.ConcatMessages(chunks)
}

func (m *scriptedModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.inputs = append(m.s.inputs, append([]*schema.Message(nil), input...))
	m.s.toolsBound = append(m.s.toolsBound, len(m.tools) > 0)
	if m.s.err != nil {
		return nil, m.s.err
	}
	i := len(m.s.inputs) - 1
	if i >= len(m.s.turns) {
		i = len(m.s.turns) - 1
	}
	return schema.StreamReaderFromArray(m.s.turns[i]), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &scriptedModel{s: m.s, tools: tools}, nil
}

func (m *scriptedModel) calls() int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.inputs)
}

// tokens builds one turn of plain content chunks.
func tokens(parts ...string) []*schema.Message {
	out := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		out = append(out, schema.AssistantMessage(p, nil))
	}
	return out
}

// toolCall builds one turn consisting of a single search_context call.
func toolCall(id, term string) []*schema.Message {
	return []*schema.Message{schema.AssistantMessage("", []schema.ToolCall{{
		ID:   id,
		Type: "function",
		Function: schema.FunctionCall{
			Name:      SearchToolName,
			Arguments: fmt.Sprintf(`{"searchTerm":%q,"reason":"need more detail"}`, term),
		},
	}})}
}

// fakeSearcher returns canned results per search term.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]rag.Result
	errs    map[string]error
	// fallbackErr is returned for terms with no entry.
	fallbackErr error
	terms       []string
}

func (f *fakeSearcher) Search(_ context.Context, text string, _ int) (rag.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, text)
	if err, ok := f.errs[text]; ok {
		return rag.Result{}, err
	}
	if res, ok := f.results[text]; ok {
		return res, nil
	}
	if f.fallbackErr != nil {
		return rag.Result{}, f.fallbackErr
	}
	return rag.Result{Sources: []rag.Source{}}, fmt.Errorf("no match: %w", rag.ErrEmptyResult)
}

func collect(seq func(func(stream.Event) bool)) []stream.Event {
	var out []stream.Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func kinds(evs []stream.Event) []stream.Kind {
	out := make([]stream.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func newTestGenerator(t *testing.T, cm model.ToolCallingChatModel, s Searcher, maxRounds int) *Generator {
	t.Helper()
	g, err := NewGenerator(context.Background(), &Config{ChatModel: cm, Searcher: s, MaxToolRounds: maxRounds})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

var testPrompt = rag.PromptContext{System: "sys", Context: "ctx", Question: "q"}

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// TestGenerate_Tokens verifies that tokens are relayed in order and the
// stream ends with a single end event.
func TestGenerate_Tokens(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(tokens("Set ", "`port`", " in config.ts"))
	g := newTestGenerator(t, cm, nil, 0)

	evs := collect(g.Generate(context.Background(), testPrompt))

	want := []stream.Kind{stream.KindToken, stream.KindToken, stream.KindToken, stream.KindEnd}
	if fmt.Sprint(kinds(evs)) != fmt.Sprint(want) {
		t.Fatalf("kinds = %v, want %v", kinds(evs), want)
	}
	var sb strings.Builder
	for _, ev := range evs {
		sb.WriteString(ev.Token)
	}
	if sb.String() != "Set `port` in config.ts" {
		t.Errorf("answer = %q", sb.String())
	}

	in := cm.s.inputs[0]
	if len(in) != 2 || in[0].Role != schema.System || in[1].Content != testPrompt.Prompt() {
		t.Errorf("model input = %+v", in)
	}
}

// TestGenerate_ToolNotFound verifies that a search with no matches yields a
// not-found tool context, feeds the result back to the model and continues.
func TestGenerate_ToolNotFound(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(toolCall("call_1", "deploy"), tokens("I could not find that."))
	g := newTestGenerator(t, cm, &fakeSearcher{}, 0)

	evs := collect(g.Generate(context.Background(), testPrompt))

	want := []stream.Kind{stream.KindToolContext, stream.KindToken, stream.KindEnd}
	if fmt.Sprint(kinds(evs)) != fmt.Sprint(want) {
		t.Fatalf("kinds = %v, want %v", kinds(evs), want)
	}
	if evs[0].Found || evs[0].Sources == nil || len(evs[0].Sources) != 0 {
		t.Errorf("tool context = %+v, want found=false with empty sources", evs[0])
	}

	second := cm.s.inputs[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool || last.ToolCallID != "call_1" {
		t.Fatalf("last message = %+v, want tool result for call_1", last)
	}
	if last.Content != `{"additionalContext":"","sources":[],"found":false}` {
		t.Errorf("tool result = %s", last.Content)
	}
}

// TestGenerate_ToolFound verifies that found context reaches the model and
// the client.
func TestGenerate_ToolFound(t *testing.T) {
	t.Parallel()

	src := rag.Source{Title: "Deploy", FilePath: "docs/deploy.md", Score: 0.8}
	s := &fakeSearcher{results: map[string]rag.Result{
		"deploy": {ContextDocs: "Run make deploy.", Sources: []rag.Source{src}},
	}}
	cm := newScriptedModel(toolCall("c1", "deploy"), tokens("Run make deploy."))
	g := newTestGenerator(t, cm, s, 0)

	evs := collect(g.Generate(context.Background(), testPrompt))
	if !evs[0].Found || len(evs[0].Sources) != 1 || evs[0].Sources[0] != src {
		t.Errorf("tool context = %+v", evs[0])
	}
	second := cm.s.inputs[1]
	if !strings.Contains(second[len(second)-1].Content, `"found":true`) {
		t.Errorf("tool result = %s", second[len(second)-1].Content)
	}
}

// TestGenerate_ToolRetrievalError verifies that a failing search degrades to
// not-found instead of failing the stream.
func TestGenerate_ToolRetrievalError(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{fallbackErr: fmt.Errorf("index down: %w", rag.ErrUpstream)}
	cm := newScriptedModel(toolCall("c1", "anything"), tokens("ok"))
	g := newTestGenerator(t, cm, s, 0)

	evs := collect(g.Generate(context.Background(), testPrompt))
	if err := stream.CheckOrder(append([]stream.Kind{stream.KindSources}, kinds(evs)...)); err != nil {
		t.Fatalf("order: %v", err)
	}
	if evs[0].Kind != stream.KindToolContext || evs[0].Found {
		t.Errorf("first event = %+v, want not-found tool context", evs[0])
	}
	if evs[len(evs)-1].Kind != stream.KindEnd {
		t.Errorf("last event = %+v, want end", evs[len(evs)-1])
	}
}

// TestGenerate_MaxToolRounds verifies that after the round cap the tool is
// withdrawn and the model is forced to answer.
func TestGenerate_MaxToolRounds(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(toolCall("a", "x"), toolCall("b", "y"), tokens("final"))
	g := newTestGenerator(t, cm, &fakeSearcher{}, 2)

	evs := collect(g.Generate(context.Background(), testPrompt))

	want := []stream.Kind{stream.KindToolContext, stream.KindToolContext, stream.KindToken, stream.KindEnd}
	if fmt.Sprint(kinds(evs)) != fmt.Sprint(want) {
		t.Fatalf("kinds = %v, want %v", kinds(evs), want)
	}
	if got := cm.s.toolsBound; fmt.Sprint(got) != "[true true false]" {
		t.Errorf("toolsBound = %v, want [true true false]", got)
	}
}

// TestGenerate_ToolCallsAfterCapEnd verifies that a model which keeps calling
// tools after the cap still terminates.
func TestGenerate_ToolCallsAfterCapEnd(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(toolCall("a", "x"))
	g := newTestGenerator(t, cm, &fakeSearcher{}, 1)

	evs := collect(g.Generate(context.Background(), testPrompt))
	if evs[len(evs)-1].Kind != stream.KindEnd {
		t.Errorf("last event = %v, want end", evs[len(evs)-1].Kind)
	}
	if cm.calls() != 2 {
		t.Errorf("model calls = %d, want 2", cm.calls())
	}
}

// TestGenerate_ContextBudget verifies that old tool rounds are dropped whole
// when the transcript exceeds the budget, keeping the newest round.
func TestGenerate_ContextBudget(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(toolCall("a", "x"), toolCall("b", "y"), tokens("final"))
	g, err := NewGenerator(context.Background(), &Config{
		ChatModel:        cm,
		Searcher:         &fakeSearcher{},
		MaxContextTokens: 1,
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	collect(g.Generate(context.Background(), testPrompt))

	if cm.calls() != 3 {
		t.Fatalf("model calls = %d, want 3", cm.calls())
	}
	last := cm.s.inputs[2]
	if len(last) != 4 {
		t.Fatalf("final pass got %d messages, want system, user and one round", len(last))
	}
	if last[2].ToolCalls[0].ID != "b" || last[3].ToolCallID != "b" {
		t.Errorf("kept round = %q/%q, want b/b", last[2].ToolCalls[0].ID, last[3].ToolCallID)
	}
}

// TestGenerate_NoSearchTool verifies that without a searcher no tools are
// bound.
func TestGenerate_NoSearchTool(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(tokens("a"))
	g := newTestGenerator(t, cm, nil, 0)
	_ = collect(g.Generate(context.Background(), testPrompt))
	if cm.s.toolsBound[0] {
		t.Error("tools bound without a searcher")
	}
}

// TestGenerate_ModelError verifies that a model failure ends the stream with
// a single error event.
func TestGenerate_ModelError(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(tokens("x"))
	cm.s.err = errors.New("401 unauthorized")
	g := newTestGenerator(t, cm, nil, 0)

	evs := collect(g.Generate(context.Background(), testPrompt))
	if len(evs) != 1 || evs[0].Kind != stream.KindError {
		t.Fatalf("events = %+v, want single error", evs)
	}
	if !strings.Contains(evs[0].Message, "401") {
		t.Errorf("message = %q", evs[0].Message)
	}
}

// TestGenerate_ConsumerStops verifies that breaking out of the iteration
// stops generation without further yields.
func TestGenerate_ConsumerStops(t *testing.T) {
	t.Parallel()

	cm := newScriptedModel(tokens("a", "b", "c"))
	g := newTestGenerator(t, cm, nil, 0)

	n := 0
	for range g.Generate(context.Background(), testPrompt) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("received %d events, want 1", n)
	}
}

// TestNewGenerator_RequiresModel verifies constructor validation.
func TestNewGenerator_RequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := NewGenerator(context.Background(), &Config{}); err == nil {
		t.Error("expected error for nil ChatModel")
	}
}

// ---------------------------------------------------------------------------
// SearchTool
// ---------------------------------------------------------------------------

// TestSearchTool_Info verifies the tool schema exposed to the model.
func TestSearchTool_Info(t *testing.T) {
	t.Parallel()

	info, err := NewSearchTool(&fakeSearcher{}, 0).Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Name != SearchToolName {
		t.Errorf("Name = %q", info.Name)
	}
	if !strings.HasPrefix(info.Desc, "Search for additional context") {
		t.Errorf("Desc = %q", info.Desc)
	}
	if info.ParamsOneOf == nil {
		t.Error("ParamsOneOf is nil")
	}
}

// TestSearchTool_InvalidArguments verifies malformed input reads as not found.
func TestSearchTool_InvalidArguments(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}
	tool := NewSearchTool(s, 3)
	for _, args := range []string{`not json`, `{"searchTerm":"  "}`} {
		out, err := tool.InvokableRun(context.Background(), args)
		if err != nil {
			t.Fatalf("InvokableRun(%q): %v", args, err)
		}
		if out != `{"additionalContext":"","sources":[],"found":false}` {
			t.Errorf("InvokableRun(%q) = %s", args, out)
		}
	}
	if len(s.terms) != 0 {
		t.Errorf("searcher called with %v, want no calls", s.terms)
	}
}
