package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
)

// CartStore implements repository.CartRepository with in-memory storage.
// A single mutex serialises every write, which is what makes AddItem atomic.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // userID -> cart
	now   func() time.Time
}

// NewCartStore creates an empty in-memory cart store
func NewCartStore() *CartStore {
	return &CartStore{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

var _ repository.CartRepository = (*CartStore)(nil)

func (s *CartStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[userID]
	if !exists {
		return nil, repository.ErrCartNotFound
	}
	c := cloneCart(cart)
	return &c, nil
}

func (s *CartStore) FindItem(_ context.Context, userID string, itemID int64) (*domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[userID]
	if !exists {
		return nil, repository.ErrCartItemNotFound
	}
	line, found := cart.Find(itemID)
	if !found {
		return nil, repository.ErrCartItemNotFound
	}
	return &line, nil
}

// AddItem creates the cart if needed, then appends the line or bumps its quantity
func (s *CartStore) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cart, exists := s.carts[userID]
	if !exists {
		cart = &domain.Cart{UserID: userID, CreatedAt: now}
		s.carts[userID] = cart
	}
	cart.UpdatedAt = now

	for i := range cart.Items {
		if cart.Items[i].ItemID == item.ItemID {
			cart.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	return nil
}

// UpdateItemQuantity overwrites the quantity of an existing line
func (s *CartStore) UpdateItemQuantity(_ context.Context, userID string, itemID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[userID]
	if !exists {
		return repository.ErrCartItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ItemID == itemID {
			cart.Items[i].Quantity = quantity
			cart.UpdatedAt = s.now()
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func cloneCart(c *domain.Cart) domain.Cart {
	out := *c
	out.Items = append(make([]domain.CartItem, 0, len(c.Items)), c.Items...)
	return out
}
