package ports

import (
	"context"

	"github.com/pelyams/cached_product_service/internal/domain"
)

type ResourceService interface {
	GetProductById(ctx context.Context, id int64) (*domain.Product, error)
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error)
	UpdateProductById(ctx context.Context, id int64, product domain.NewProduct) (*domain.Product, error)
	DeleteProductById(ctx context.Context, id int64) (*domain.Product, error)
	DeleteAllProducts(ctx context.Context) (int64, error)
	Ready(ctx context.Context) error
}
