// Package cache holds the Redis-backed for-sale listing cache. Reads of the
// marketplace listing are the hottest scan in the system; caching them does
// not change the scan-and-filter read contract, only its cost.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carledger/internal/registry/models"
)

const forSaleKey = "carledger:cars:for_sale"

// ForSaleCache caches the cars-for-sale scan result. A nil *ForSaleCache is
// valid and always misses, so dev wiring without Redis keeps working.
type ForSaleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *ForSaleCache {
	if client == nil {
		return nil
	}
	return &ForSaleCache{client: client, ttl: ttl}
}

// Get returns the cached listing and whether it was present.
func (c *ForSaleCache) Get(ctx context.Context) ([]models.Car, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, forSaleKey).Bytes()
	if err != nil {
		return nil, false
	}
	var cars []models.Car
	if err := json.Unmarshal(raw, &cars); err != nil {
		return nil, false
	}
	return cars, true
}

// Set stores the listing with the configured TTL.
func (c *ForSaleCache) Set(ctx context.Context, cars []models.Car) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(cars)
	if err != nil {
		return fmt.Errorf("marshal for-sale listing: %w", err)
	}
	return c.client.Set(ctx, forSaleKey, raw, c.ttl).Err()
}

// Invalidate drops the cached listing. Called by every transition that can
// change which cars are for sale or who owns them.
func (c *ForSaleCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, forSaleKey).Err()
}
