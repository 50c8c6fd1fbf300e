package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kparichay/indexfund/internal/domain"
)

// RankingCache implements domain.RankingCache. Resolved ranking windows are
// stored as JSON arrays under "ranking:{key}" with a TTL so market-cap
// movements surface on the next resolution.
type RankingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRankingCache creates a RankingCache backed by the given Client.
func NewRankingCache(c *Client, ttl time.Duration) *RankingCache {
	return &RankingCache{rdb: c.Underlying(), ttl: ttl}
}

func rankingKey(key string) string {
	return "ranking:" + key
}

// SetRanking stores the symbol list for a ranking window.
func (rc *RankingCache) SetRanking(ctx context.Context, key string, symbols []string) error {
	payload, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("redis: marshal ranking %s: %w", key, err)
	}
	if err := rc.rdb.Set(ctx, rankingKey(key), payload, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set ranking %s: %w", key, err)
	}
	return nil
}

// GetRanking retrieves a cached ranking window, or domain.ErrNotFound when
// the entry is missing or expired.
func (rc *RankingCache) GetRanking(ctx context.Context, key string) ([]string, error) {
	payload, err := rc.rdb.Get(ctx, rankingKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get ranking %s: %w", key, err)
	}
	var symbols []string
	if err := json.Unmarshal(payload, &symbols); err != nil {
		return nil, fmt.Errorf("redis: unmarshal ranking %s: %w", key, err)
	}
	return symbols, nil
}
