package server

import (
	"context"
	"fmt"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// IndexPinger probes the vector index behind a handle. Before the handle is
// initialized it reports rag.ErrNotInitialized, so readiness stays false
// while the index connection is still being established.
type IndexPinger struct {
	// handle is the shared index handle.
	handle *rag.Handle[rag.Index]
}

// NewIndexPinger constructs an IndexPinger for h.
func NewIndexPinger(h *rag.Handle[rag.Index]) *IndexPinger {
	return &IndexPinger{handle: h}
}

// Name returns the handle label, typically the backend name.
func (p *IndexPinger) Name() string { return p.handle.Name() }

// Ping resolves the handle and calls the index's own health check.
func (p *IndexPinger) Ping(ctx context.Context) error {
	idx, err := p.handle.Get(ctx)
	if err != nil {
		return err
	}
	if err := idx.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// funcPinger adapts a ping function to the Pinger interface.
type funcPinger struct {
	name string
	ping func(ctx context.Context) error
}

// PingFunc returns a Pinger named name that calls ping. It is used for
// dependencies such as the Redis cache that expose a bare Ping method.
func PingFunc(name string, ping func(ctx context.Context) error) Pinger {
	return &funcPinger{name: name, ping: ping}
}

func (p *funcPinger) Name() string                   { return p.name }
func (p *funcPinger) Ping(ctx context.Context) error { return p.ping(ctx) }
