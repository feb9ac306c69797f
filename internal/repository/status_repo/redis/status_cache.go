package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"farepay/internal/domain"
)

const keyPrefix = "farepay:status:"

type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

// Get returns nil, nil on a miss.
func (c *StatusCache) Get(ctx context.Context, merchantReference string) (*domain.StatusView, error) {
	raw, err := c.client.Get(ctx, keyPrefix+merchantReference).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached status for %s: %w", merchantReference, err)
	}

	var view domain.StatusView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("failed to decode cached status for %s: %w", merchantReference, err)
	}
	if !view.IsTerminal() {
		return nil, nil
	}
	return &view, nil
}

func (c *StatusCache) Put(ctx context.Context, view domain.StatusView) error {
	if !view.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode status for %s: %w", view.MerchantReference, err)
	}
	if err := c.client.Set(ctx, keyPrefix+view.MerchantReference, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status for %s: %w", view.MerchantReference, err)
	}
	return nil
}
