package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker around the cache backend.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// OnStateChange is optional.
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerCache fails fast with gobreaker.ErrOpenState while the wrapped cache
// is unhealthy. Cache misses count as successes.
type BreakerCache struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[any]
}

var _ CartCache = (*BreakerCache)(nil)

func NewBreakerCache(next CartCache, s BreakerSettings) *BreakerCache {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "cart-cache",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss) || errors.Is(err, context.Canceled)
		},
		OnStateChange: s.OnStateChange,
	}

	return &BreakerCache{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.Get(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Cart), nil
}

func (b *BreakerCache) Version(ctx context.Context, userID string) (int64, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.Version(ctx, userID)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (b *BreakerCache) SetIfVersion(ctx context.Context, userID string, cart *domain.Cart, version int64) (bool, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.SetIfVersion(ctx, userID, cart, version)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (b *BreakerCache) Invalidate(ctx context.Context, userID string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Invalidate(ctx, userID)
	})
	return err
}

func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}
