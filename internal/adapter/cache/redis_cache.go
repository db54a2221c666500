package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

var _ port.SearchCache = (*RedisCache)(nil)

// RedisCache shares search results between server instances. Keys embed a
// generation counter stored under <prefix>gen; Invalidate increments it and
// stale keys expire through their TTL. Embeddings are not cached.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

// DialRedis connects and pings, like the gateway's InitRedis.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (c *RedisCache) genKey() string {
	return c.prefix + "gen"
}

func (c *RedisCache) generation(ctx context.Context) (uint64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) key(gen uint64, query string, topK int) string {
	return c.prefix + strconv.FormatUint(gen, 10) + ":" + cacheKey(query, topK)
}

func (c *RedisCache) Get(ctx context.Context, query string, topK int) ([]domain.ScoredConversation, uint64, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("search cache unavailable", "error", err)
		return nil, 0, false
	}

	data, err := c.rdb.Get(ctx, c.key(gen, query, topK)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("search cache read failed", "error", err)
		}
		return nil, gen, false
	}

	var results []domain.ScoredConversation
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "error", err)
		return nil, gen, false
	}
	return results, gen, true
}

// Put writes under the key of generation gen, which readers stop using once
// Invalidate bumps the counter. Writes for an already stale gen are skipped.
func (c *RedisCache) Put(ctx context.Context, gen uint64, query string, topK int, results []domain.ScoredConversation) {
	current, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("search cache unavailable", "error", err)
		return
	}
	if current != gen {
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(gen, query, topK), data, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, c.genKey()).Err(); err != nil {
		c.logger.Warn("search cache invalidation failed", "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
