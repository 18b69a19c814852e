package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis for collector responses so repeated report runs within
// the TTL window do not hit the upstream APIs again.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection
func New(addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// GetJSON reads a cached value into dest. The second return reports whether
// the key was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a value under the cache TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// PricesKey is the cache key for a code's daily bars over a period
func PricesKey(code, period string) string {
	return fmt.Sprintf("prices:%s:%s", code, period)
}

// FinancialsKey is the cache key for a code's DART financials
func FinancialsKey(code string) string {
	return fmt.Sprintf("financials:%s", code)
}

// DisclosuresKey is the cache key for a code's recent DART filings
func DisclosuresKey(code string) string {
	return fmt.Sprintf("disclosures:%s", code)
}

// NewsKey is the cache key for a stock's news search results
func NewsKey(name string) string {
	return fmt.Sprintf("news:%s", name)
}

// RankingKey is the cache key for a market's trading-value ranking
func RankingKey(market string) string {
	return fmt.Sprintf("ranking:%s", market)
}
