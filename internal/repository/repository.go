package repository

import (
	"context"
	"errors"

	"github.com/fjod/mongomart/internal/domain"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("item not found in cart")

	// ErrUnavailable marks failures to reach the backing store: lost
	// connections, timeouts, a busy or shutting down server. Errors without it
	// are about the data and repeating the call will not help.
	ErrUnavailable = errors.New("store unavailable")
)

// ItemRepository is the persistent catalog. Every listing is ordered by item id
// ascending so that offset pagination is deterministic. An empty category or
// query disables the corresponding filter.
type ItemRepository interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	ListItems(ctx context.Context, category string, offset, limit int) ([]domain.Item, error)
	CountItems(ctx context.Context, category string) (int, error)
	SearchItems(ctx context.Context, query string, offset, limit int) ([]domain.Item, error)
	CountSearchItems(ctx context.Context, query string) (int, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	RelatedItems(ctx context.Context, excludeID int64, limit int) ([]domain.Item, error)
	AddReview(ctx context.Context, itemID int64, review domain.Review) (*domain.Item, error)
	SaveItem(ctx context.Context, item domain.Item) error
}

// CartRepository defines the interface for cart data operations.
// AddItem inserts the line as given, creating the cart if needed, or increments
// an existing line by item.Quantity. Either way it is one atomic operation.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	FindItem(ctx context.Context, userID string, itemID int64) (*domain.CartItem, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, itemID int64, quantity int) error
}
