package embedding

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"

	"cricsight/internal/domain"
)

// CachedEmbedder memoizes single-text embeddings in front of another
// provider. Search queries repeat often within a session, so a small LRU
// saves a network round trip per repeat. Batch calls (article ingestion)
// bypass the cache entirely.
type CachedEmbedder struct {
	inner domain.EmbeddingProvider
	cap   int

	mu      sync.Mutex
	byKey   map[uint64]*list.Element
	recency *list.List // front = least recently used
}

type cacheSlot struct {
	key uint64
	vec []float32
}

// NewCachedEmbedder wraps inner with an LRU of at most capacity entries.
// A non-positive capacity disables caching and returns inner unchanged.
func NewCachedEmbedder(inner domain.EmbeddingProvider, capacity int) domain.EmbeddingProvider {
	if capacity <= 0 {
		return inner
	}
	return &CachedEmbedder{
		inner:   inner,
		cap:     capacity,
		byKey:   make(map[uint64]*list.Element, capacity),
		recency: list.New(),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.inner.Embed(ctx, texts)
	}

	key := cacheKey(c.inner.Name(), texts[0])
	if vec, ok := c.lookup(key); ok {
		return [][]float32{vec}, nil
	}

	vecs, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 1 {
		c.store(key, vecs[0])
	}
	return vecs, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *CachedEmbedder) Name() string    { return c.inner.Name() }

// lookup returns the cached vector for key, promoting it on hit.
func (c *CachedEmbedder) lookup(key uint64) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	c.recency.MoveToBack(elem)
	return elem.Value.(*cacheSlot).vec, true
}

// store inserts key→vec, evicting the coldest entry when at capacity.
func (c *CachedEmbedder) store(key uint64, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.byKey[key]; ok {
		elem.Value.(*cacheSlot).vec = vec
		c.recency.MoveToBack(elem)
		return
	}
	if c.recency.Len() >= c.cap {
		coldest := c.recency.Front()
		delete(c.byKey, coldest.Value.(*cacheSlot).key)
		c.recency.Remove(coldest)
	}
	c.byKey[key] = c.recency.PushBack(&cacheSlot{key: key, vec: vec})
}

// cacheKey hashes provider name plus text so that switching providers at
// the same capacity never serves stale vectors.
func cacheKey(provider, text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum64()
}

var _ domain.EmbeddingProvider = (*CachedEmbedder)(nil)
