package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studynotes-client/internal/domain"
)

// SummaryCache stores finished summaries as JSON strings:
// SET client:summary:{documentID} {json} EX ttl
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SummaryCache) GetSummary(ctx context.Context, documentID string) (domain.Summary, bool, error) {
	raw, err := c.client.Get(ctx, c.key(documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Summary{}, false, nil
	}
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("get cached summary: %w", err)
	}
	var summary domain.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return domain.Summary{}, false, fmt.Errorf("unmarshal cached summary: %w", err)
	}
	return summary, true, nil
}

func (c *SummaryCache) PutSummary(ctx context.Context, summary domain.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, c.key(summary.DocumentID), data, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache summary: %w", err)
	}
	return nil
}

func (c *SummaryCache) key(documentID string) string {
	return "client:summary:" + documentID
}

func (c *SummaryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
