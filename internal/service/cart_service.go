package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/mongomart/internal/cache"
	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// sharedLoadTimeout bounds a store read shared by concurrent GetCart callers.
const sharedLoadTimeout = 10 * time.Second

type CartService struct {
	repo   repository.CartRepository
	cache  cache.CartCache // optional
	sfg    singleflight.Group
	logger zerolog.Logger
	now    func() time.Time
}

// NewCartService wires the cart store with an optional read-through cache.
// Cache failures are logged and never fail a request.
func NewCartService(repo repository.CartRepository, cartCache cache.CartCache, logger zerolog.Logger) *CartService {
	return &CartService{
		repo:   repo,
		cache:  cartCache,
		logger: logger.With().Str("component", "cart_service").Logger(),
		now:    time.Now,
	}
}

// GetCart returns the user's cart, or an empty one if the user never added anything.
func (s *CartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if err := validateUser(userID); err != nil {
		return domain.Cart{}, err
	}

	// Concurrent misses for the same user share one store read. The shared
	// read is detached from the first caller so its cancellation does not
	// fail the others; each caller still stops waiting on its own context.
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return s.readThrough(loadCtx, userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Cart{}, res.Err
		}
		return res.Val.(domain.Cart), nil
	case <-ctx.Done():
		return domain.Cart{}, ctx.Err()
	}
}

func (s *CartService) readThrough(ctx context.Context, userID string) (domain.Cart, error) {
	if s.cache == nil {
		cart, _, err := s.loadCart(ctx, userID)
		return cart, err
	}

	cached, err := s.cache.Get(ctx, userID)
	if err == nil {
		return *cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("cache get failed")
	}

	// the version must be read before the store so a mutation in between is seen
	version, versionErr := s.cache.Version(ctx, userID)
	if versionErr != nil {
		s.logger.Warn().Err(versionErr).Str("user_id", userID).Msg("cache version failed")
	}

	cart, found, err := s.loadCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !found || versionErr != nil {
		return cart, nil
	}

	stored, err := s.cache.SetIfVersion(ctx, userID, &cart, version)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("cache set failed")
	case !stored:
		s.logger.Debug().Str("user_id", userID).Msg("cart changed while loading, not cached")
	}
	return cart, nil
}

// FindCartItem reports false when the user's cart has no line for itemID.
func (s *CartService) FindCartItem(ctx context.Context, userID string, itemID int64) (domain.CartItem, bool, error) {
	if err := validateUser(userID); err != nil {
		return domain.CartItem{}, false, err
	}

	line, err := s.repo.FindItem(ctx, userID, itemID)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return domain.CartItem{}, false, nil
	}
	if err != nil {
		return domain.CartItem{}, false, storeErr("find cart item", err)
	}
	return *line, true, nil
}

// AddItem puts one unit of item into the cart. A line that already exists is
// incremented by the store in the same operation that would otherwise insert it.
func (s *CartService) AddItem(ctx context.Context, userID string, item domain.Item) (domain.Cart, error) {
	if err := validateUser(userID); err != nil {
		return domain.Cart{}, err
	}
	if item.ID <= 0 {
		return domain.Cart{}, invalid("itemId", "must be positive")
	}
	if err := validatePrice(item.Price); err != nil {
		return domain.Cart{}, err
	}

	line := domain.NewCartItem(item, 1, s.now().UTC())
	if err := s.repo.AddItem(ctx, userID, line); err != nil {
		return domain.Cart{}, storeErr("add item", err)
	}

	s.invalidateCache(userID)
	return s.reload(ctx, userID)
}

func (s *CartService) SetQuantity(ctx context.Context, userID string, itemID int64, quantity int) (domain.Cart, error) {
	if err := validateUser(userID); err != nil {
		return domain.Cart{}, err
	}
	if quantity <= 0 {
		return domain.Cart{}, invalid("quantity", "must be positive")
	}

	err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return domain.Cart{}, &NotFoundError{Resource: "cart item", ID: strconv.FormatInt(itemID, 10)}
	}
	if err != nil {
		return domain.Cart{}, storeErr("set quantity", err)
	}

	s.invalidateCache(userID)
	return s.reload(ctx, userID)
}

// ComputeTotal sums price*quantity over the cart lines; an empty cart totals zero.
func ComputeTotal(cart domain.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, line := range cart.Items {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func (s *CartService) loadCart(ctx context.Context, userID string) (domain.Cart, bool, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := s.now().UTC()
		return domain.Cart{
			UserID:    userID,
			Items:     []domain.CartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, false, nil
	}
	if err != nil {
		return domain.Cart{}, false, storeErr("get cart", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return *cart, true, nil
}

// reload reads a cart straight from the store after a mutation.
func (s *CartService) reload(ctx context.Context, userID string) (domain.Cart, error) {
	cart, _, err := s.loadCart(ctx, userID)
	return cart, err
}

func (s *CartService) invalidateCache(userID string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("cache invalidate failed")
	}
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("userId", "must not be blank")
	}
	return nil
}
