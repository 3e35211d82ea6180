package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL keeps embeddings for a day; identical text re-ingested
// within that window skips the provider entirely.
const DefaultCacheTTL = 24 * time.Hour

// Cache is a Redis read-through cache for embedding vectors, keyed by
// model and text hash. All operations are best-effort: a cache outage
// degrades to provider calls, never to request failures.
type Cache struct {
	rdb    *redis.Client
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(rdb *redis.Client, model string, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, model: model, ttl: ttl, logger: logger.With("component", "embedding_cache")}
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

// Get returns the cached vector for text, if any.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.rdb.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", "error", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", "error", err)
		return nil, false
	}
	return vec, true
}

// Set stores a vector for text. Failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(text), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}
