package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Alias1177/goldscalper/models"
)

type cacheKey struct {
	symbol string
	tf     models.Timeframe
	count  int
}

type cacheEntry struct {
	bars    []models.Bar
	fetched time.Time
}

// CachingSource keeps bar responses for a short time so that a fast control
// loop does not exhaust a rate-limited data feed.
type CachingSource struct {
	source models.BarSource
	ttl    time.Duration

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

// NewCachingSource wraps source; responses are reused for ttl.
func NewCachingSource(source models.BarSource, ttl time.Duration) *CachingSource {
	return &CachingSource{
		source:  source,
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Bars returns cached bars when fresh, otherwise fetches them. A failed fetch
// falls back to the stale entry when there is one.
func (c *CachingSource) Bars(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Bar, error) {
	key := cacheKey{symbol: symbol, tf: tf, count: count}

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.bars, nil
	}

	bars, err := c.source.Bars(ctx, symbol, tf, count)
	if err != nil {
		if ok {
			return entry.bars, nil
		}
		return nil, fmt.Errorf("bar cache miss: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{bars: bars, fetched: c.now()}
	c.mu.Unlock()
	return bars, nil
}
