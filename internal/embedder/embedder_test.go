package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/54b3r/ragchat-go/internal/cache"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "openai/valid", cfg: Config{Backend: BackendOpenAI, APIKey: "sk", Model: "text-embedding-3-small"}},
		{name: "openai/missing key", cfg: Config{Backend: BackendOpenAI, Model: "m"}, wantErr: "OPENAI_API_KEY"},
		{name: "azure/missing endpoint", cfg: Config{Backend: BackendAzure, APIKey: "k", Model: "m"}, wantErr: "AZURE_OPENAI_ENDPOINT"},
		{name: "ollama/valid", cfg: Config{Backend: BackendOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"}},
		{name: "ollama/missing model", cfg: Config{Backend: BackendOllama, BaseURL: "http://x"}, wantErr: "EMBEDDING_MODEL"},
		{name: "gemini/unsupported", cfg: Config{Backend: "gemini", Model: "m"}, wantErr: "unsupported backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
			if !errors.Is(err, rag.ErrConfig) {
				t.Errorf("err = %v, does not wrap rag.ErrConfig", err)
			}
		})
	}
}

// TestConfigFromEnv_InheritsChatKey verifies that the OpenAI chat key is
// reused when no embedding-specific key is set.
func TestConfigFromEnv_InheritsChatKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-chat")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI || cfg.APIKey != "sk-chat" || cfg.Model != defaultOpenAIModel {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
}

// TestLooksLikeChatModel covers the chat-model heuristic.
func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for model, want := range map[string]bool{
		"gpt-4o":                 true,
		"llama3:8b":              true,
		"text-embedding-3-small": false,
		"nomic-embed-text":       false,
		"mxbai-embed-large":      false,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Ollama
// ---------------------------------------------------------------------------

// TestOllamaEmbed_Success verifies request shape and response decoding.
func TestOllamaEmbed_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || len(req.Input) != 1 {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	vec, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("vec = %v", vec)
	}
}

// TestOllamaEmbed_Upstream verifies that HTTP failures wrap rag.ErrUpstream.
func TestOllamaEmbed_Upstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: `model "x" not found`})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "x"})
	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, rag.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want upstream message", err)
	}
}

// ---------------------------------------------------------------------------
// Eino adapter
// ---------------------------------------------------------------------------

// fakeEinoEmbedder implements embedding.Embedder.
type fakeEinoEmbedder struct {
	out   [][]float64
	err   error
	calls int
}

func (f *fakeEinoEmbedder) EmbedStrings(_ context.Context, _ []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	return f.out, f.err
}

// TestEinoEmbedder_Converts verifies float64 to float32 conversion.
func TestEinoEmbedder_Converts(t *testing.T) {
	t.Parallel()

	e := newEinoEmbedder(&fakeEinoEmbedder{out: [][]float64{{0.5, -1}}}, "m", 0)
	vec, err := e.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != -1 {
		t.Errorf("vec = %v", vec)
	}
}

// TestEinoEmbedder_Errors verifies that client errors and empty responses
// wrap rag.ErrUpstream.
func TestEinoEmbedder_Errors(t *testing.T) {
	t.Parallel()

	for name, fake := range map[string]*fakeEinoEmbedder{
		"client error": {err: errors.New("429 rate limited")},
		"empty":        {out: [][]float64{}},
	} {
		e := newEinoEmbedder(fake, "m", time.Second)
		if _, err := e.Embed(context.Background(), "q"); !errors.Is(err, rag.ErrUpstream) {
			t.Errorf("%s: err = %v, want ErrUpstream", name, err)
		}
	}
}

// TestEmbed_EmptyText verifies that blank input is rejected with
// rag.ErrValidation before any upstream call, for every backend.
func TestEmbed_EmptyText(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	eino := &fakeEinoEmbedder{out: [][]float64{{1}}}
	backends := map[string]rag.Embedder{
		"eino":   newEinoEmbedder(eino, "m", time.Second),
		"ollama": NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"}),
	}

	for _, text := range []string{"", "   ", "\n\t"} {
		for name, emb := range backends {
			if _, err := emb.Embed(context.Background(), text); !errors.Is(err, rag.ErrValidation) {
				t.Errorf("%s Embed(%q) err = %v, want ErrValidation", name, text, err)
			}
		}
	}
	if hits.Load() != 0 {
		t.Errorf("ollama server called %d times for blank input", hits.Load())
	}
	if eino.calls != 0 {
		t.Errorf("eino client called %d times for blank input", eino.calls)
	}
}

// ---------------------------------------------------------------------------
// Cached
// ---------------------------------------------------------------------------

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingEmbedder) Embed(context.Context, string) (rag.Vector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return rag.Vector{1, 2, 3}, nil
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// TestCached_ReusesVectors verifies that repeated queries hit the cache and
// that the model participates in the key.
func TestCached_ReusesVectors(t *testing.T) {
	t.Parallel()

	next := &countingEmbedder{}
	store := &mapStore{data: map[string][]byte{}}
	c := cache.New(store, time.Hour, nil)

	a := NewCached(next, c, "model-a")
	for range 3 {
		vec, err := a.Embed(context.Background(), "same question")
		if err != nil || len(vec) != 3 {
			t.Fatalf("Embed = (%v, %v)", vec, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}

	b := NewCached(next, c, "model-b")
	if _, err := b.Embed(context.Background(), "same question"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2 after model change", next.calls)
	}
}

// TestCached_PropagatesErrors verifies that embed failures are not cached.
func TestCached_PropagatesErrors(t *testing.T) {
	t.Parallel()

	next := &countingEmbedder{err: rag.ErrUpstream}
	store := &mapStore{data: map[string][]byte{}}
	e := NewCached(next, cache.New(store, 0, nil), "m")

	if _, err := e.Embed(context.Background(), "q"); !errors.Is(err, rag.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
	if len(store.data) != 0 {
		t.Errorf("store has %d entries, want 0", len(store.data))
	}
}
