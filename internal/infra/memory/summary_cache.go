package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"studynotes-client/internal/domain"
)

// SummaryCache keeps finished summaries with a TTL so revisits skip polling.
type SummaryCache struct {
	ttl   time.Duration
	clock func() time.Time
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSummary
}

type cachedSummary struct {
	summary   domain.Summary
	expiresAt time.Time
}

// NewSummaryCache returns a cache; a zero ttl keeps entries forever.
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	return newSummaryCacheWithClock(ttl, time.Now)
}

func newSummaryCacheWithClock(ttl time.Duration, now func() time.Time) *SummaryCache {
	return &SummaryCache{
		ttl:   ttl,
		clock: now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedSummary),
	}
}

func (c *SummaryCache) GetSummary(_ context.Context, documentID string) (domain.Summary, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[documentID]
	if !ok || (!entry.expiresAt.IsZero() && !entry.expiresAt.After(c.clock())) {
		return domain.Summary{}, false, nil
	}
	return entry.summary, true, nil
}

func (c *SummaryCache) PutSummary(_ context.Context, summary domain.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cachedSummary{summary: summary}
	if ttl := c.ttlWithJitter(); ttl > 0 {
		entry.expiresAt = c.clock().Add(ttl)
	}
	c.cache[summary.DocumentID] = entry
	return nil
}

// ttlWithJitter must be called with mu held; rand.Rand is not safe for concurrent use.
func (c *SummaryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
