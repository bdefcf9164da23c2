package cache

import (
	"context"
	"errors"

	"github.com/fjod/mongomart/internal/domain"
)

// CartCache stores rendered carts keyed by user id. Implementations return
// ErrCacheMiss when nothing is cached for the user.
//
// Every user has a version counter that Invalidate bumps. A reader captures
// the version before loading the cart from the store and hands it to
// SetIfVersion, so a cart loaded before a concurrent mutation is never cached
// after that mutation invalidated the entry.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Version is 0 for a user that was never invalidated.
	Version(ctx context.Context, userID string) (int64, error)
	// SetIfVersion reports false, storing nothing, when the version moved on.
	SetIfVersion(ctx context.Context, userID string, cart *domain.Cart, version int64) (bool, error)
	// Invalidate drops the cached cart and bumps the version in one step.
	Invalidate(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
