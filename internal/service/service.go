// Package service implements the cached product service.
//
// By-id reads are cache-aside: a hit is returned without touching the store,
// a miss loads from the store and populates the cache. Updates are
// write-through (store first, then an unconditional cache overwrite) and
// deletes evict after the store delete. Listing and creation never touch the
// cache.
//
// The cache is never allowed to fail a request. Read errors fall back to the
// store; write and evict errors are logged and the store result is returned.
// A failed eviction or overwrite therefore leaves one stale entry behind
// until it expires, is evicted, or is overwritten by a later update.
//
// Known race: operations on the same id are not serialized. Two concurrent
// updates may leave the cache holding either value regardless of which store
// write landed last, and a read that missed before a concurrent update may
// repopulate the cache with the pre-update value after the update's cache
// write. Both windows close on the next update, delete, expiry or eviction.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pelyams/cached_product_service/internal/domain"
	"github.com/pelyams/cached_product_service/internal/ports"
)

const (
	opGet      = "get"
	opPopulate = "populate"
	opUpdate   = "update"
	opDelete   = "delete"
	opClear    = "clear"

	defaultSharedLoadTimeout = 5 * time.Second
)

// CacheRecorder observes cache outcomes per operation.
type CacheRecorder interface {
	CacheHit(op string)
	CacheMiss(op string)
	CacheFailure(op string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)     {}
func (nopRecorder) CacheMiss(string)    {}
func (nopRecorder) CacheFailure(string) {}

type Option func(*ResourceService)

func WithLogger(log *zap.Logger) Option {
	return func(s *ResourceService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRecorder(r CacheRecorder) Option {
	return func(s *ResourceService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMissCoalescing makes concurrent misses for the same id share a single
// store read. The shared read is detached from every caller's cancellation and
// bounded by its own timeout; each caller still stops waiting when its own
// context is done.
func WithMissCoalescing(timeout time.Duration) Option {
	return func(s *ResourceService) {
		if timeout <= 0 {
			timeout = defaultSharedLoadTimeout
		}
		s.group = &singleflight.Group{}
		s.sharedLoadTimeout = timeout
	}
}

type ResourceService struct {
	db       ports.Repository
	cache    ports.Cache
	log      *zap.Logger
	recorder CacheRecorder
	group    *singleflight.Group

	sharedLoadTimeout time.Duration
}

func NewResourceService(db ports.Repository, cache ports.Cache, opts ...Option) *ResourceService {
	s := &ResourceService{
		db:       db,
		cache:    cache,
		log:      zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResourceService) GetProductById(ctx context.Context, id int64) (*domain.Product, error) {
	cached, err := s.cache.GetProduct(ctx, id)
	switch {
	case err == nil:
		s.recorder.CacheHit(opGet)
		return cached, nil
	case errors.Is(err, domain.ErrCacheMiss):
		s.recorder.CacheMiss(opGet)
	default:
		s.cacheDegraded(opGet, id, err)
	}

	if s.group == nil {
		return s.loadAndPopulate(ctx, id)
	}
	ch := s.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sharedLoadTimeout)
		defer cancel()
		return s.loadAndPopulate(loadCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		product := *res.Val.(*domain.Product)
		return &product, nil
	}
}

func (s *ResourceService) loadAndPopulate(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.db.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, product); err != nil {
		s.cacheDegraded(opPopulate, id, err)
	}
	return product, nil
}

func (s *ResourceService) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	return s.db.GetAllProducts(ctx)
}

func (s *ResourceService) GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error) {
	return s.db.GetProductsPaged(ctx, limit, offset)
}

func (s *ResourceService) CreateProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error) {
	return s.db.StoreProduct(ctx, product)
}

func (s *ResourceService) UpdateProductById(ctx context.Context, id int64, product domain.NewProduct) (*domain.Product, error) {
	existing, err := s.db.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.db.SaveProduct(ctx, existing.WithFields(product))
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, updated); err != nil {
		s.cacheDegraded(opUpdate, id, err)
	}
	return updated, nil
}

func (s *ResourceService) DeleteProductById(ctx context.Context, id int64) (*domain.Product, error) {
	existing, err := s.db.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteProductById(ctx, id); err != nil {
		return nil, err
	}
	if err := s.cache.DeleteProduct(ctx, id); err != nil {
		s.cacheDegraded(opDelete, id, err)
	}
	return existing, nil
}

func (s *ResourceService) DeleteAllProducts(ctx context.Context) (int64, error) {
	rowsDeleted, err := s.db.DeleteAllProducts(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cache.ClearProducts(ctx); err != nil {
		s.recorder.CacheFailure(opClear)
		s.log.Warn("cache clear failed, stale entries may be served until they expire",
			zap.String("op", opClear), zap.Error(err))
	}
	return rowsDeleted, nil
}

// Ready reports store health. Cache health is logged only, since the service
// keeps working without it.
func (s *ResourceService) Ready(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	if err := s.cache.Ping(ctx); err != nil {
		s.log.Warn("cache not reachable, serving from store", zap.Error(err))
	}
	return nil
}

func (s *ResourceService) cacheDegraded(op string, id int64, err error) {
	s.recorder.CacheFailure(op)
	s.log.Warn("cache operation failed, continuing with record store",
		zap.String("op", op),
		zap.Int64("id", id),
		zap.Error(err),
	)
}
