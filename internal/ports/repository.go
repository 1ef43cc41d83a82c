package ports

import (
	"context"

	"github.com/pelyams/cached_product_service/internal/domain"
)

// Repository is the authoritative product store.
type Repository interface {
	StoreProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error)
	// SaveProduct upserts product by its id.
	SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProductById(ctx context.Context, id int64) error
	DeleteAllProducts(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
