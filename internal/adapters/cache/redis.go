package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pelyams/cached_product_service/internal/domain"
)

const scanBatch = 256

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache keys entries as <prefix>product:<id>. A zero ttl stores
// entries without expiry, leaving eviction to the server's memory policy.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) createKey(id int64) string {
	return fmt.Sprintf("%sproduct:%d", r.prefix, id)
}

func (r *RedisCache) SetProduct(ctx context.Context, product *domain.Product) error {
	key := r.createKey(product.Id)
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("%w: error marshalling product: %s", domain.ErrCacheUnavailable, err.Error())
	}
	err = r.client.Set(ctx, key, data, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: failed to store product %d to cache: %w", domain.ErrCacheUnavailable, product.Id, err)
	}
	return nil
}

func (r *RedisCache) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := r.createKey(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: failed to get product %d from cache: %w", domain.ErrCacheUnavailable, id, err)
	}
	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		// an undecodable entry is useless; treat it like a failed read so
		// callers fall back to the store
		return nil, fmt.Errorf("%w: corrupt cache entry for product %d: %s", domain.ErrCacheUnavailable, id, err.Error())
	}
	return &product, nil
}

func (r *RedisCache) DeleteProduct(ctx context.Context, id int64) error {
	key := r.createKey(id)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: failed to delete product %d from cache: %w", domain.ErrCacheUnavailable, id, err)
	}
	return nil
}

// ClearProducts removes product entries only; other keys in the same
// database are left alone.
func (r *RedisCache) ClearProducts(ctx context.Context) error {
	pattern := r.prefix + "product:*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("%w: failed to scan cache keys: %w", domain.ErrCacheUnavailable, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: failed to clear cache: %w", domain.ErrCacheUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}
