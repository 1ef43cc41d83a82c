// Package memory holds process-local adapters used for tests and for running
// the service without external infrastructure.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pelyams/cached_product_service/internal/domain"
)

type Repository struct {
	mu     sync.RWMutex
	nextId int64
	m      map[int64]domain.Product
}

func NewRepository() *Repository {
	return &Repository{m: map[int64]domain.Product{}}
}

func (s *Repository) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Repository) StoreProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextId++
	stored := domain.Product{Id: s.nextId, Name: product.Name, Brand: product.Brand, Amount: product.Amount}
	s.m[stored.Id] = stored
	return &stored, nil
}

func (s *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	if !ok {
		return nil, domain.NewNotFoundError(id)
	}
	return &p, nil
}

func (s *Repository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	return s.GetProductsPaged(ctx, -1, 0)
}

// GetProductsPaged treats a negative limit as unbounded.
func (s *Repository) GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })

	if offset >= int64(len(out)) {
		return []domain.Product{}, nil
	}
	out = out[offset:]
	if limit >= 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Repository) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[product.Id] = product
	if product.Id > s.nextId {
		s.nextId = product.Id
	}
	saved := product
	return &saved, nil
}

func (s *Repository) DeleteProductById(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return domain.NewNotFoundError(id)
	}
	delete(s.m, id)
	return nil
}

func (s *Repository) DeleteAllProducts(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.m))
	s.m = map[int64]domain.Product{}
	return n, nil
}
