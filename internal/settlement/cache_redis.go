package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courseflow/pkg/domain"
)

// SummaryCache holds computed organization summaries. Summaries are
// reporting reads, never transition-gating, so a short-TTL cache with
// best-effort invalidation is acceptable.
type SummaryCache interface {
	Get(ctx context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, bool)
	Set(ctx context.Context, summary Summary)
	Invalidate(ctx context.Context, orgID domain.OrganizationID)
}

// RedisSummaryCache caches summaries in Redis under a per-organization key
// set, so invalidation on a payment change clears every cached range for
// that organization.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func summaryKey(orgID domain.OrganizationID, from, to domain.CalendarDate) string {
	return fmt.Sprintf("settlement:summary:%s:%s:%s", orgID, from, to)
}

func orgKeySet(orgID domain.OrganizationID) string {
	return fmt.Sprintf("settlement:summary-keys:%s", orgID)
}

func (c *RedisSummaryCache) Get(ctx context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(orgID, from, to)).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (c *RedisSummaryCache) Set(ctx context.Context, summary Summary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	key := summaryKey(summary.OrganizationID, summary.From, summary.To)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	pipe.SAdd(ctx, orgKeySet(summary.OrganizationID), key)
	pipe.Expire(ctx, orgKeySet(summary.OrganizationID), c.ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, orgID domain.OrganizationID) {
	keys, err := c.client.SMembers(ctx, orgKeySet(orgID)).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	keys = append(keys, orgKeySet(orgID))
	_ = c.client.Del(ctx, keys...).Err()
}
