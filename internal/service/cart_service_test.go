package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/mongomart/internal/cache"
	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
	"github.com/fjod/mongomart/internal/repository/memory"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testUser = "558098a65133816958968d88"

var (
	mug     = domain.Item{ID: 1, Name: "Coffee Mug", Price: decimal.NewFromInt(10), Category: "Kitchen"}
	sticker = domain.Item{ID: 2, Name: "Leaf Sticker", Price: decimal.NewFromInt(3), Category: "Stickers"}
)

func newCartService(t *testing.T, c cache.CartCache) (*CartService, *memory.CartStore) {
	t.Helper()
	store := memory.NewCartStore()
	svc := NewCartService(store, c, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func newRedisCache(t *testing.T) (cache.CartCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, time.Minute), mr
}

func TestGetCart_MissingCartIsEmpty(t *testing.T) {
	svc, _ := newCartService(t, nil)

	cart, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, testUser, cart.UserID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
	assert.True(t, ComputeTotal(cart).IsZero())
}

func TestAddItem_TwiceIncrements(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	cart, err = svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "Coffee Mug", cart.Items[0].Name)
}

func TestAddItem_SnapshotsPrice(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)

	repriced := mug
	repriced.Price = decimal.NewFromInt(99)
	cart, err := svc.AddItem(ctx, testUser, repriced)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(cart.Items[0].Price))
	assert.True(t, decimal.NewFromInt(20).Equal(ComputeTotal(cart)))
}

func TestAddItem_Concurrent(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()
	const n = 50

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.AddItem(ctx, testUser, mug)
			return err
		})
	}
	require.NoError(t, g.Wait())

	line, found, err := svc.FindCartItem(ctx, testUser, mug.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, n, line.Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, " ", mug)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddItem(ctx, testUser, domain.Item{ID: 0, Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddItem(ctx, testUser, domain.Item{ID: 9, Name: "x", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeTotal(t *testing.T) {
	assert.True(t, ComputeTotal(domain.Cart{}).Equal(decimal.Zero))

	cart := domain.Cart{Items: []domain.CartItem{
		{Price: decimal.NewFromInt(10), Quantity: 2},
		{Price: decimal.NewFromInt(3), Quantity: 1},
	}}
	assert.Equal(t, "23", ComputeTotal(cart).String())

	cart = domain.Cart{Items: []domain.CartItem{
		{Price: decimal.RequireFromString("0.10"), Quantity: 3},
		{Price: decimal.RequireFromString("0.20"), Quantity: 1},
	}}
	assert.Equal(t, "0.5", ComputeTotal(cart).String())
}

func TestSetQuantity(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, testUser, sticker)
	require.NoError(t, err)

	cart, err := svc.SetQuantity(ctx, testUser, mug.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "23", ComputeTotal(cart).String())
}

func TestSetQuantity_NonPositiveLeavesCartUnchanged(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	before, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)

	for _, q := range []int{0, -1} {
		_, err := svc.SetQuantity(ctx, testUser, mug.ID, q)
		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "quantity", inputErr.Field)
	}

	after, err := svc.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetQuantity_MissingLine(t *testing.T) {
	svc, _ := newCartService(t, nil)

	_, err := svc.SetQuantity(context.Background(), testUser, 42, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindCartItem(t *testing.T) {
	svc, _ := newCartService(t, nil)
	ctx := context.Background()

	_, found, err := svc.FindCartItem(ctx, testUser, mug.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)

	line, found, err := svc.FindCartItem(ctx, testUser, mug.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, mug.Name, line.Name)
}

func TestGetCart_ReadThroughCache(t *testing.T) {
	c, _ := newRedisCache(t)
	svc, _ := newCartService(t, c)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	_, err = c.Get(ctx, testUser)
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "mutations never populate the cache")

	cart, err := svc.GetCart(ctx, testUser)
	require.NoError(t, err)

	cached, err := c.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, cart.Items[0].Quantity, cached.Items[0].Quantity)

	// a mutation drops the entry so the next read sees the new quantity
	_, err = svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	_, err = c.Get(ctx, testUser)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	cart, err = svc.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestGetCart_EmptyCartNotCached(t *testing.T) {
	c, mr := newRedisCache(t)
	svc, _ := newCartService(t, c)

	_, err := svc.GetCart(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCartService_CacheDownIsIgnored(t *testing.T) {
	c, mr := newRedisCache(t)
	svc, _ := newCartService(t, c)
	ctx := context.Background()
	mr.Close()

	cart, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	cart, err = svc.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

// countingRepo counts store reads so singleflight sharing can be observed.
type countingRepo struct {
	repository.CartRepository
	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func (c *countingRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	<-c.release
	return c.CartRepository.GetCart(ctx, userID)
}

func TestGetCart_ConcurrentMissesShareOneRead(t *testing.T) {
	repo := &countingRepo{CartRepository: memory.NewCartStore(), release: make(chan struct{})}
	svc := NewCartService(repo, nil, zerolog.Nop())
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := svc.GetCart(ctx, testUser)
			return err
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	require.NoError(t, g.Wait())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Less(t, repo.reads, 10)
}

// gatedRepo pauses the first store read after arm until release is closed.
type gatedRepo struct {
	repository.CartRepository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGatedRepo(inner repository.CartRepository) *gatedRepo {
	return &gatedRepo{
		CartRepository: inner,
		reached:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (g *gatedRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := g.CartRepository.GetCart(ctx, userID)
	if g.armed.CompareAndSwap(true, false) {
		close(g.reached)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return cart, err
}

type cartResult struct {
	cart domain.Cart
	err  error
}

func TestGetCart_ReadRacingAddItemIsNotCached(t *testing.T) {
	c, _ := newRedisCache(t)
	repo := newGatedRepo(memory.NewCartStore())
	svc := NewCartService(repo, c, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)

	// the read loads quantity 1, then stalls before it reaches the cache
	repo.armed.Store(true)
	slow := make(chan cartResult, 1)
	go func() {
		cart, err := svc.GetCart(ctx, testUser)
		slow <- cartResult{cart, err}
	}()
	<-repo.reached

	cart, err := svc.AddItem(ctx, testUser, mug)
	require.NoError(t, err)
	require.Equal(t, 2, cart.Items[0].Quantity)

	close(repo.release)
	res := <-slow
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.cart.Items[0].Quantity)

	_, err = c.Get(ctx, testUser)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	cart, err = svc.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "20", ComputeTotal(cart).String())
}

func TestGetCart_ReadRacingSetQuantityIsNotCached(t *testing.T) {
	c, _ := newRedisCache(t)
	repo := newGatedRepo(memory.NewCartStore())
	svc := NewCartService(repo, c, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, testUser, sticker)
	require.NoError(t, err)

	repo.armed.Store(true)
	slow := make(chan cartResult, 1)
	go func() {
		cart, err := svc.GetCart(ctx, testUser)
		slow <- cartResult{cart, err}
	}()
	<-repo.reached

	_, err = svc.SetQuantity(ctx, testUser, sticker.ID, 5)
	require.NoError(t, err)

	close(repo.release)
	require.NoError(t, (<-slow).err)

	cart, err := svc.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "15", ComputeTotal(cart).String())
}

func TestGetCart_CancelledCallerDoesNotFailSharedRead(t *testing.T) {
	repo := newGatedRepo(memory.NewCartStore())
	svc := NewCartService(repo, nil, zerolog.Nop())

	_, err := svc.AddItem(context.Background(), testUser, mug)
	require.NoError(t, err)

	repo.armed.Store(true)
	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan cartResult, 1)
	go func() {
		cart, err := svc.GetCart(firstCtx, testUser)
		first <- cartResult{cart, err}
	}()
	<-repo.reached

	second := make(chan cartResult, 1)
	go func() {
		cart, err := svc.GetCart(context.Background(), testUser)
		second <- cartResult{cart, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, (<-first).err, context.Canceled)

	close(repo.release)
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.cart.Items, 1)
	assert.Equal(t, 1, res.cart.Items[0].Quantity)
}

type failingCarts struct {
	repository.CartRepository
	err error
}

func (f failingCarts) GetCart(context.Context, string) (*domain.Cart, error) { return nil, f.err }
func (f failingCarts) AddItem(context.Context, string, domain.CartItem) error {
	return f.err
}

func TestCartService_StoreUnavailable(t *testing.T) {
	driverErr := errors.New("server selection timeout")
	repoErr := fmt.Errorf("failed to get cart: %w: %w", repository.ErrUnavailable, driverErr)
	svc := NewCartService(failingCarts{err: repoErr}, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.GetCart(ctx, testUser)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, driverErr)

	_, err = svc.AddItem(ctx, testUser, mug)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCartService_DataErrorIsNotUnavailable(t *testing.T) {
	driverErr := errors.New("cart line 1: unsupported price type bool")
	svc := NewCartService(failingCarts{err: driverErr}, nil, zerolog.Nop())

	_, err := svc.GetCart(context.Background(), testUser)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get cart", storeErr.Op)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}
