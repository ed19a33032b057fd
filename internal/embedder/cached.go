package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/54b3r/ragchat-go/internal/cache"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// Cached memoises another embedder's vectors in a cache.Cache. Keys include
// the model name so switching models never serves stale vectors.
type Cached struct {
	next  rag.Embedder
	cache *cache.Cache
	model string
}

// NewCached wraps next with c.
func NewCached(next rag.Embedder, c *cache.Cache, model string) *Cached {
	return &Cached{next: next, cache: c, model: model}
}

// Embed returns the cached vector for text or computes and stores it.
// The returned vector is a fresh copy owned by the caller.
func (c *Cached) Embed(ctx context.Context, text string) (rag.Vector, error) {
	raw, err := c.cache.GetOrLoad(ctx, c.key(text), func(ctx context.Context) ([]byte, error) {
		vec, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return json.Marshal([]float32(vec))
	})
	if err != nil {
		return nil, err
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		// A corrupt entry must not break the request.
		v, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return slices.Clone(v), nil
	}
	return rag.Vector(vec), nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "|" + text))
	return fmt.Sprintf("ragchat:emb:%s", hex.EncodeToString(sum[:]))
}
