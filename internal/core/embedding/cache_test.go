package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/markdave123-py/Syntra/internal/log"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(rdb, "test-model", time.Hour, applog.NewNop()), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "hello world", []float32{0.1, 0.2, 0.3})

	vec, ok := cache.Get(ctx, "hello world")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, ok := cache.Get(context.Background(), "never stored")
	assert.False(t, ok)
}

func TestCacheKeysAreModelScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewCache(rdb, "model-a", time.Hour, applog.NewNop())
	b := NewCache(rdb, "model-b", time.Hour, applog.NewNop())

	ctx := context.Background()
	a.Set(ctx, "same text", []float32{1})

	_, ok := b.Get(ctx, "same text")
	assert.False(t, ok, "a different model must not see the entry")

	vec, ok := a.Get(ctx, "same text")
	require.True(t, ok)
	assert.Equal(t, []float32{1}, vec)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "ephemeral", []float32{1})
	mr.FastForward(2 * time.Hour)

	_, ok := cache.Get(ctx, "ephemeral")
	assert.False(t, ok)
}

func TestCacheIgnoresCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "text", []float32{1})
	require.NoError(t, mr.Set(cache.key("text"), "not json"))

	_, ok := cache.Get(ctx, "text")
	assert.False(t, ok)
}
