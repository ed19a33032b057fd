package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fake Pinger for readiness tests
// ---------------------------------------------------------------------------

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s, _ := newTestServer(t, &fakeAnswerer{})
	s.pingers = pingers
	return s
}

// ---------------------------------------------------------------------------
// GET /api/health: liveness
// ---------------------------------------------------------------------------

// TestHandleHealth_OK verifies that GET /api/health returns 200 with a JSON
// body containing {"status":"ok"}.
func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAnswerer{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d, body: %s", w.Code, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body.Status)
	}
	if body.Version == "" {
		t.Error("version: expected non-empty")
	}
}

// ---------------------------------------------------------------------------
// GET /api/ready: readiness
// ---------------------------------------------------------------------------

// TestHandleReady_NoPingers verifies that /api/ready returns 200 with
// ready:true and an empty checks array when no pingers are registered.
func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready:true with no pingers")
	}
	if len(resp.Checks) != 0 {
		t.Errorf("expected 0 checks, got %d", len(resp.Checks))
	}
}

// TestHandleReady_AllHealthy verifies that /api/ready returns 200 with
// ready:true when all pingers succeed.
func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t,
		&fakePinger{name: "redis", err: nil},
		&fakePinger{name: "pinecone", err: nil},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready:true")
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
	for _, c := range resp.Checks {
		if !c.OK {
			t.Errorf("check %q: expected ok:true", c.Name)
		}
		if c.Error != "" {
			t.Errorf("check %q: expected no error, got %q", c.Name, c.Error)
		}
	}
}

// TestHandleReady_OneFailing verifies that /api/ready returns 503 with
// ready:false when one pinger fails, and the failing check has ok:false
// with a non-empty error field.
func TestHandleReady_OneFailing(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t,
		&fakePinger{name: "redis", err: nil},
		&fakePinger{name: "pinecone", err: errors.New("connection refused")},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Errorf("expected ready:false")
	}

	var indexCheck *readyCheck
	for i := range resp.Checks {
		if resp.Checks[i].Name == "pinecone" {
			indexCheck = &resp.Checks[i]
		}
	}
	if indexCheck == nil {
		t.Fatal("pinecone check missing from response")
	}
	if indexCheck.OK {
		t.Errorf("pinecone check: expected ok:false")
	}
	if indexCheck.Error == "" {
		t.Errorf("pinecone check: expected non-empty error")
	}
}

// TestHandleReady_AllFailing verifies that /api/ready returns 503 with
// ready:false and all checks showing ok:false when every pinger fails.
func TestHandleReady_AllFailing(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t,
		&fakePinger{name: "redis", err: errors.New("timeout")},
		&fakePinger{name: "pinecone", err: errors.New("connection refused")},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Errorf("expected ready:false")
	}
	for _, c := range resp.Checks {
		if c.OK {
			t.Errorf("check %q: expected ok:false", c.Name)
		}
	}
}

// TestHandleReady_ContentType verifies the response always has Content-Type
// application/json regardless of probe outcome.
func TestHandleReady_ContentType(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t, &fakePinger{name: "redis", err: errors.New("down")})
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
}

// ---------------------------------------------------------------------------
// Pinger adapters
// ---------------------------------------------------------------------------

// fakeIndex is a rag.Index whose Ping returns err.
type fakeIndex struct {
	err  error
	docs []rag.Document
}

func (f *fakeIndex) Query(context.Context, rag.Vector, int) ([]rag.Document, error) {
	return f.docs, nil
}
func (f *fakeIndex) Ping(context.Context) error { return f.err }
func (f *fakeIndex) Name() string               { return "fake" }
func (f *fakeIndex) Close() error               { return nil }

// TestIndexPinger_NotInitialized verifies an index handle that was never
// initialized reports not ready.
func TestIndexPinger_NotInitialized(t *testing.T) {
	t.Parallel()

	p := NewIndexPinger(rag.NewHandle[rag.Index]("pinecone"))
	if p.Name() != "pinecone" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(context.Background()); !errors.Is(err, rag.ErrNotInitialized) {
		t.Errorf("Ping() = %v, want ErrNotInitialized", err)
	}
}

// TestIndexPinger_Ready verifies the pinger delegates to the index.
func TestIndexPinger_Ready(t *testing.T) {
	t.Parallel()

	down := errors.New("unreachable")
	if err := NewIndexPinger(rag.Ready[rag.Index]("qdrant", &fakeIndex{})).Ping(context.Background()); err != nil {
		t.Errorf("healthy Ping() = %v", err)
	}
	err := NewIndexPinger(rag.Ready[rag.Index]("qdrant", &fakeIndex{err: down})).Ping(context.Background())
	if !errors.Is(err, down) {
		t.Errorf("unhealthy Ping() = %v, want wrapped %v", err, down)
	}
}

func TestPingFunc(t *testing.T) {
	t.Parallel()

	called := false
	p := PingFunc("redis", func(context.Context) error { called = true; return nil })
	if p.Name() != "redis" || p.Ping(context.Background()) != nil || !called {
		t.Error("PingFunc did not delegate")
	}
}
