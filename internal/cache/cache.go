// Package cache provides a read-through byte cache used to memoise query
// embeddings. Redis is the production store; a cache failure never fails the
// caller, it only costs a recomputation.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime of a cached entry when none is configured.
const DefaultTTL = 24 * time.Hour

// DefaultLoadTimeout bounds one shared load.
const DefaultLoadTimeout = 30 * time.Second

// ErrMiss is returned by Store.Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

var tracer = otel.Tracer("github.com/54b3r/ragchat-go/internal/cache")

// Store is a byte-oriented key-value store with per-entry expiry.
type Store interface {
	// Get returns the stored value or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a read-through cache over a Store. Concurrent loads of the same
// key are collapsed into one.
type Cache struct {
	store       Store
	ttl         time.Duration
	loadTimeout time.Duration
	log         *slog.Logger
	group       singleflight.Group
}

// New returns a Cache over store. ttl <= 0 selects DefaultTTL.
func New(store Store, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, loadTimeout: DefaultLoadTimeout, log: log}
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// storing its result. Store errors are logged and treated as misses; only
// load errors and ctx's own error are returned. Concurrent callers for the
// same key share one load, which is unaffected by any single caller going
// away.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cache.GetOrLoad")
	defer span.End()

	if val, ok := c.get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared load runs detached with its own deadline; each caller stops
	// waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		if val, ok := c.get(lctx, key); ok {
			return val, nil
		}
		val, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(lctx, key, val, c.ttl); err != nil {
			c.log.Warn("cache: write failed", slog.String("error", err.Error()))
		}
		return val, nil
	})

	select {
	case res := <-ch:
		span.SetAttributes(attribute.Bool("cache.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	}
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		return val, true
	case errors.Is(err, ErrMiss):
	default:
		trace.SpanFromContext(ctx).RecordError(err)
		c.log.Warn("cache: read failed", slog.String("error", err.Error()))
	}
	return nil, false
}
