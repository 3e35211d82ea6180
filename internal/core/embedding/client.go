// Package embedding wraps a raw embedding provider with batching, bounded
// concurrency, retries and an optional read-through cache. The wrapper
// preserves input order exactly: vector i always belongs to text i, no
// matter how batches are split or in which order they complete.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/Syntra/internal/core"
)

// Options tunes one client instance. Ingestion and interactive retrieval
// get separate instances so background batches cannot starve chat queries
// on a shared provider rate limit.
type Options struct {
	BatchSize     int           // texts per provider call
	MaxConcurrent int           // concurrent in-flight batches
	MaxRetries    int           // attempts per batch before giving up
	BaseBackoff   time.Duration // first retry delay, doubled per attempt
	Dim           int           // expected vector length; 0 skips the check
	RateLimit     float64       // provider calls per second; 0 disables
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 3
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
}

// Client implements core.EmbeddingProvider on top of another provider.
type Client struct {
	provider core.EmbeddingProvider
	cache    *Cache // optional
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
}

func NewClient(provider core.EmbeddingProvider, cache *Cache, opts Options, logger *slog.Logger) *Client {
	opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.MaxConcurrent)
	}
	return &Client{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		opts:     opts,
		logger:   logger.With("component", "embedding"),
	}
}

var _ core.EmbeddingProvider = (*Client)(nil)

// EmbedTexts returns one vector per input text, in input order. A batch
// that exhausts its retries fails the whole call with an EmbeddingError
// carrying the failed input range; no partial result is ever returned.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	// Serve what we can from the cache; everything else goes to the provider.
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, t := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(ctx, t); ok {
				results[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if hits := len(texts) - len(missTexts); hits > 0 {
		c.logger.Debug("embedding cache hits", "hits", hits, "total", len(texts))
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrent)

	for start := 0; start < len(missTexts); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(missTexts))
		batch := missTexts[start:end]
		batchStart, batchEnd := start, end

		g.Go(func() error {
			vecs, err := c.embedBatch(gctx, batch)
			if err != nil {
				return &core.EmbeddingError{
					BatchStart: missIdx[batchStart],
					BatchEnd:   missIdx[batchEnd-1] + 1,
					Err:        err,
				}
			}
			// Write each vector back to its original input slot. Slots are
			// disjoint across batches, so no locking is needed.
			for j, vec := range vecs {
				results[missIdx[batchStart+j]] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.cache != nil {
		for k, i := range missIdx {
			c.cache.Set(ctx, missTexts[k], results[i])
		}
	}
	return results, nil
}

// embedBatch calls the provider for one batch with retry and backoff.
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.opts.BaseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vecs, err := c.provider.EmbedTexts(ctx, batch)
		if err != nil {
			lastErr = err
			c.logger.Warn("embed batch attempt failed", "attempt", attempt+1, "size", len(batch), "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch))
		}
		if c.opts.Dim > 0 {
			for _, v := range vecs {
				if len(v) != c.opts.Dim {
					return nil, fmt.Errorf("provider returned vector of dimension %d, want %d", len(v), c.opts.Dim)
				}
			}
		}
		return vecs, nil
	}
	return nil, lastErr
}
