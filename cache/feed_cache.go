package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vasilala/gateway"

	"github.com/redis/go-redis/v9"
)

// trendingTTL bounds staleness of the cached trending page.
const trendingTTL = 5 * time.Minute

const trendingKey = "feed:trending"

// FeedCache caches the trending feed page so the gateway daemon does not
// hit the document store for every anonymous scroll.
type FeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a feed cache over the given Redis client.
func NewFeedCache(client *redis.Client) *FeedCache {
	return &FeedCache{client: client}
}

// GetTrending returns the cached page, or nil on a miss.
func (c *FeedCache) GetTrending(ctx context.Context) ([]gateway.Document, error) {
	payload, err := c.client.Get(ctx, trendingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trending cache: %w", err)
	}

	var docs []gateway.Document
	if err := json.Unmarshal([]byte(payload), &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trending cache: %w", err)
	}
	return docs, nil
}

// SetTrending stores the page with the standard TTL.
func (c *FeedCache) SetTrending(ctx context.Context, docs []gateway.Document) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to marshal trending page: %w", err)
	}
	if err := c.client.Set(ctx, trendingKey, payload, trendingTTL).Err(); err != nil {
		return fmt.Errorf("failed to write trending cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached page, e.g. after a new post.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, trendingKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate trending cache: %w", err)
	}
	return nil
}
