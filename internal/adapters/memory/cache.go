package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pelyams/cached_product_service/internal/domain"
)

type cacheItem struct {
	product   domain.Product
	expiresAt time.Time
}

// Cache stores product snapshots by id with an optional TTL. Zero ttl means
// entries live until deleted or evicted.
type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[int64]cacheItem
	now   func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, items: make(map[int64]cacheItem), now: time.Now}
}

func (c *Cache) Ping(ctx context.Context) error { return ctx.Err() }

func (c *Cache) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	item, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if c.expired(item) {
		c.mu.Lock()
		// a SetProduct may have replaced the entry since the read lock was released
		if current, ok := c.items[id]; ok && c.expired(current) {
			delete(c.items, id)
		}
		c.mu.Unlock()
		return nil, domain.ErrCacheMiss
	}
	p := item.product
	return &p, nil
}

func (c *Cache) expired(item cacheItem) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

func (c *Cache) SetProduct(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := cacheItem{product: *product}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[product.Id] = item
	return nil
}

func (c *Cache) DeleteProduct(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

func (c *Cache) ClearProducts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int64]cacheItem)
	return nil
}

// Peek reports the raw entry for id without TTL handling.
func (c *Cache) Peek(id int64) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item.product, ok
}

// Evict drops an entry the way an external eviction policy would.
func (c *Cache) Evict(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
