package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

var _ port.SearchCache = (*QueryCache)(nil)

// QueryCache is an in-process LRU of search results with a TTL. Every store
// mutation bumps the generation, which drops all entries.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	results   []domain.ScoredConversation
	timestamp time.Time
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, topK int) string {
	h := xxhash.New()
	h.WriteString(query)
	h.WriteString("\x00")
	h.WriteString(strconv.Itoa(topK))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (c *QueryCache) Get(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, uint64, bool) {
	key := cacheKey(query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, c.gen, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.gen != c.gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, c.gen, false
	}

	c.moveToEnd(key)
	return copyResults(entry.results), c.gen, true
}

// Put drops results whose generation was invalidated while they were computed.
func (c *QueryCache) Put(ctx context.Context, gen uint64, query string, topK int, results []domain.ScoredConversation) {
	key := cacheKey(query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	entry := &cacheEntry{
		results:   copyResults(results),
		timestamp: time.Now(),
		gen:       gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// copyResults deep-copies results so cached entries share no memory with callers.
func copyResults(results []domain.ScoredConversation) []domain.ScoredConversation {
	out := make([]domain.ScoredConversation, len(results))
	for i, r := range results {
		out[i] = domain.ScoredConversation{
			Conversation: cloneConversation(r.Conversation),
			Score:        r.Score,
		}
	}
	return out
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	c.Feedback = domain.Feedback{
		AccuracyA:  clonePtr(c.Feedback.AccuracyA),
		AccuracyB:  clonePtr(c.Feedback.AccuracyB),
		Creativity: clonePtr(c.Feedback.Creativity),
		Notes:      clonePtr(c.Feedback.Notes),
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CachedSearcher answers repeated queries from a SearchCache.
type CachedSearcher struct {
	searcher port.Searcher
	cache    port.SearchCache
}

func NewCachedSearcher(searcher port.Searcher, cache port.SearchCache) *CachedSearcher {
	return &CachedSearcher{
		searcher: searcher,
		cache:    cache,
	}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, error) {
	cached, gen, hit := s.cache.Get(ctx, query, topK)
	if hit {
		return cached, nil
	}

	results, err := s.searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, gen, query, topK, results)
	return results, nil
}
