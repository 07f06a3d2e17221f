// Package cacheredis stores verification results in redis so that several
// daemons share them.
package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"recordproof/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "recordproof:"

type Cache struct {
	client redis.UniversalClient
}

func NewWithClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var value domain.VerificationResult
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, err
	}
	return &value, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
