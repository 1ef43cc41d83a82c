package ports

import (
	"context"

	"github.com/pelyams/cached_product_service/internal/domain"
)

// Cache is a volatile accelerator for by-id product lookups. Entries may
// disappear at any time.
type Cache interface {
	// GetProduct returns domain.ErrCacheMiss when no entry exists for id.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	// DeleteProduct succeeds when there is nothing to delete.
	DeleteProduct(ctx context.Context, id int64) error
	ClearProducts(ctx context.Context) error
	Ping(ctx context.Context) error
}
