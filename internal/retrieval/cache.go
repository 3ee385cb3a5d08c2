package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"onemcp/internal/config"
)

// Cache is an optional Redis-backed cache of serialized retrieval responses.
// A nil cache is a no-op, so callers never branch on configuration.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds the cache when enabled; returns nil when disabled or when
// the backend is unreachable (retrieval then runs uncached).
func NewCache(cfg config.RedisCacheConfig) *Cache {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("retrieval_cache_unavailable")
		return nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(req Request) string {
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("onemcp:retrieval:%s", hex.EncodeToString(sum[:16]))
}

// Get returns a cached response for the request, if any.
func (c *Cache) Get(ctx context.Context, req Request) (Response, bool) {
	if c == nil || c.client == nil {
		return Response{}, false
	}
	key := cacheKey(req)
	if key == "" {
		return Response{}, false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("retrieval_cache_get_error")
		}
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return Response{}, false
	}
	return resp, true
}

// Set stores a response; failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, req Request, resp Response) {
	if c == nil || c.client == nil {
		return
	}
	key := cacheKey(req)
	if key == "" {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("retrieval_cache_set_error")
	}
}
