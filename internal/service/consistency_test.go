package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelyams/cached_product_service/internal/adapters/memory"
	"github.com/pelyams/cached_product_service/internal/domain"
)

// countingRepository counts by-id store reads.
type countingRepository struct {
	*memory.Repository
	reads   atomic.Int64
	release chan struct{}
}

func (r *countingRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	r.reads.Add(1)
	if r.release != nil {
		<-r.release
	}
	return r.Repository.GetProduct(ctx, id)
}

type brokenCache struct{}

func (brokenCache) GetProduct(context.Context, int64) (*domain.Product, error) {
	return nil, domain.ErrCacheUnavailable
}
func (brokenCache) SetProduct(context.Context, *domain.Product) error { return domain.ErrCacheUnavailable }
func (brokenCache) DeleteProduct(context.Context, int64) error        { return domain.ErrCacheUnavailable }
func (brokenCache) ClearProducts(context.Context) error               { return domain.ErrCacheUnavailable }
func (brokenCache) Ping(context.Context) error                        { return domain.ErrCacheUnavailable }

type countingRecorder struct {
	mu       sync.Mutex
	hits     map[string]int
	misses   map[string]int
	failures map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}, failures: map[string]int{}}
}

func (r *countingRecorder) CacheHit(op string)     { r.mu.Lock(); r.hits[op]++; r.mu.Unlock() }
func (r *countingRecorder) CacheMiss(op string)    { r.mu.Lock(); r.misses[op]++; r.mu.Unlock() }
func (r *countingRecorder) CacheFailure(op string) { r.mu.Lock(); r.failures[op]++; r.mu.Unlock() }

func seed(t *testing.T, repo *countingRepository, p domain.Product) {
	t.Helper()
	_, err := repo.SaveProduct(context.Background(), p)
	require.NoError(t, err)
}

func newFixture() (*ResourceService, *countingRepository, *memory.Cache) {
	repo := &countingRepository{Repository: memory.NewRepository()}
	cache := memory.NewCache(0)
	return NewResourceService(repo, cache), repo, cache
}

func TestUpdateThenGetIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	updated, err := svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "B", Brand: "Y", Amount: 6})
	require.NoError(t, err)
	readsAfterUpdate := repo.reads.Load()

	got, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &domain.Product{Id: 1, Name: "B", Brand: "Y", Amount: 6}, got)
	assert.Equal(t, updated, got)
	assert.Equal(t, readsAfterUpdate, repo.reads.Load())
}

func TestUpdateOverwritesExistingEntry(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	_, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	_, err = svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "B", Brand: "Y", Amount: 6})
	require.NoError(t, err)

	cached, ok := cache.Peek(1)
	require.True(t, ok)
	assert.Equal(t, "B", cached.Name)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	_, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	_, ok := cache.Peek(1)
	require.True(t, ok)

	deleted, err := svc.DeleteProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted.Id)

	_, ok = cache.Peek(1)
	assert.False(t, ok)

	_, err = svc.GetProductById(ctx, 1)
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(1), nf.Id)
	_, ok = cache.Peek(1)
	assert.False(t, ok)
}

func TestMissThenPopulate(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	want := domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5}
	seed(t, repo, want)

	first, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &want, first)
	assert.Equal(t, int64(1), repo.reads.Load())

	second, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &want, second)
	assert.Equal(t, int64(1), repo.reads.Load())

	cached, ok := cache.Peek(1)
	assert.True(t, ok)
	assert.Equal(t, want, cached)
}

func TestEvictionFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	_, err := svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "B", Brand: "Y", Amount: 6})
	require.NoError(t, err)
	cache.Evict(1)
	before := repo.reads.Load()

	got, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)
	assert.Equal(t, before+1, repo.reads.Load())
	_, ok := cache.Peek(1)
	assert.True(t, ok)
}

func TestFailOpenOnCacheOutage(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{Repository: memory.NewRepository()}
	recorder := newCountingRecorder()
	svc := NewResourceService(repo, brokenCache{}, WithRecorder(recorder))
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	got, err := svc.GetProductById(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	updated, err := svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "B", Brand: "Y", Amount: 6})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)
	stored, err := repo.Repository.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", stored.Name)

	_, err = svc.DeleteProductById(ctx, 1)
	require.NoError(t, err)
	_, err = repo.Repository.GetProduct(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.DeleteAllProducts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, recorder.failures[opGet])
	assert.Equal(t, 1, recorder.failures[opPopulate])
	assert.Equal(t, 1, recorder.failures[opUpdate])
	assert.Equal(t, 1, recorder.failures[opDelete])
	assert.Equal(t, 1, recorder.failures[opClear])
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A", Brand: "X", Amount: 5})

	_, err := svc.DeleteProductById(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := svc.DeleteProductById(ctx, 1)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "attempt %d: %v", i, err)
		assert.False(t, errors.Is(err, domain.ErrStoreUnavailable))
	}
}

func TestNeverCachedProductIsNotFoundEverywhere(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newFixture()

	_, err := svc.GetProductById(ctx, 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.UpdateProductById(ctx, 404, domain.NewProduct{Name: "x"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.DeleteProductById(ctx, 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, cache.Len())
}

func TestListingBypassesCache(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "new", Brand: "X", Amount: 5})
	require.NoError(t, cache.SetProduct(ctx, &domain.Product{Id: 1, Name: "old", Brand: "X", Amount: 1}))

	all, err := svc.GetAllProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{{Id: 1, Name: "new", Brand: "X", Amount: 5}}, all)

	page, err := svc.GetProductsPaged(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, all, page)

	cached, _ := cache.Peek(1)
	assert.Equal(t, "old", cached.Name)
}

func TestCreateDoesNotPopulateCache(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newFixture()

	created, err := svc.CreateProduct(ctx, domain.NewProduct{Name: "A", Brand: "X", Amount: 5})
	require.NoError(t, err)
	assert.NotZero(t, created.Id)
	assert.Zero(t, cache.Len())
}

func TestDeleteAllClearsCache(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A"})
	seed(t, repo, domain.Product{Id: 2, Name: "B"})
	_, _ = svc.GetProductById(ctx, 1)
	_, _ = svc.GetProductById(ctx, 2)
	require.Equal(t, 2, cache.Len())

	n, err := svc.DeleteAllProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Zero(t, cache.Len())

	_, err = svc.GetProductById(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancelledContextSurfaces(t *testing.T) {
	svc, repo, _ := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetProductById(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "B"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorderCountsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{Repository: memory.NewRepository()}
	recorder := newCountingRecorder()
	svc := NewResourceService(repo, memory.NewCache(0), WithRecorder(recorder))
	seed(t, repo, domain.Product{Id: 1, Name: "A"})

	for i := 0; i < 3; i++ {
		_, err := svc.GetProductById(ctx, 1)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, recorder.misses[opGet])
	assert.Equal(t, 2, recorder.hits[opGet])
	assert.Empty(t, recorder.failures)
}

func TestMissCoalescingSharesStoreRead(t *testing.T) {
	repo := &countingRepository{Repository: memory.NewRepository(), release: make(chan struct{})}
	seed(t, repo, domain.Product{Id: 1, Name: "A"})
	svc := NewResourceService(repo, memory.NewCache(0), WithMissCoalescing(time.Second))

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan *domain.Product, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.GetProductById(context.Background(), 1)
			if err == nil {
				results <- p
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int64(1), repo.reads.Load())
	var seen []*domain.Product
	for p := range results {
		assert.Equal(t, "A", p.Name)
		seen = append(seen, p)
	}
	require.Len(t, seen, callers)
	// every caller owns its copy
	seen[0].Name = "mutated"
	assert.Equal(t, "A", seen[1].Name)
}

func TestMissCoalescingHonorsWaiterDeadline(t *testing.T) {
	repo := &countingRepository{Repository: memory.NewRepository(), release: make(chan struct{})}
	seed(t, repo, domain.Product{Id: 1, Name: "A"})
	svc := NewResourceService(repo, memory.NewCache(0), WithMissCoalescing(time.Second))

	leaderDone := make(chan error, 1)
	go func() {
		_, err := svc.GetProductById(context.Background(), 1)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return repo.reads.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	waiterDone := make(chan error, 1)
	go func() {
		_, err := svc.GetProductById(ctx, 1)
		waiterDone <- err
	}()

	select {
	case err := <-waiterDone:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiter kept blocking past its own deadline")
	}

	close(repo.release)
	require.NoError(t, <-leaderDone)
	assert.Equal(t, int64(1), repo.reads.Load())
}

func TestMissCoalescingSurvivesLeaderCancellation(t *testing.T) {
	repo := &countingRepository{Repository: memory.NewRepository(), release: make(chan struct{})}
	seed(t, repo, domain.Product{Id: 1, Name: "A"})
	cache := memory.NewCache(0)
	svc := NewResourceService(repo, cache, WithMissCoalescing(time.Second))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := svc.GetProductById(leaderCtx, 1)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return repo.reads.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		product *domain.Product
		err     error
	}
	waiterDone := make(chan result, 1)
	go func() {
		p, err := svc.GetProductById(context.Background(), 1)
		waiterDone <- result{p, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	close(repo.release)
	got := <-waiterDone
	require.NoError(t, got.err)
	assert.Equal(t, "A", got.product.Name)
	assert.Equal(t, int64(1), repo.reads.Load())

	// the detached load still populates the cache
	cached, ok := cache.Peek(1)
	require.True(t, ok)
	assert.Equal(t, "A", cached.Name)
}

func TestConcurrentOperationsStayConsistentAfterQuiescence(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newFixture()
	seed(t, repo, domain.Product{Id: 1, Name: "A"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int64) {
			defer wg.Done()
			_, _ = svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "A", Brand: "X", Amount: n})
		}(int64(i))
		go func() {
			defer wg.Done()
			_, _ = svc.GetProductById(ctx, 1)
		}()
	}
	wg.Wait()

	// the race may leave any writer's value cached; one more write settles it
	final, err := svc.UpdateProductById(ctx, 1, domain.NewProduct{Name: "final", Brand: "X", Amount: 99})
	require.NoError(t, err)
	cached, ok := cache.Peek(1)
	require.True(t, ok)
	assert.Equal(t, *final, cached)
}
