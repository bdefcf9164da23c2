package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is a snapshot of a catalog item taken when it was first added.
// Later catalog price changes do not touch it.
type CartItem struct {
	ItemID   int64           `json:"item_id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	ImageURL string          `json:"img_url,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	AddedAt  time.Time       `json:"added_at"`
}

// NewCartItem copies the purchasable fields of item into a cart line.
func NewCartItem(item Item, quantity int, addedAt time.Time) CartItem {
	return CartItem{
		ItemID:   item.ID,
		Name:     item.Name,
		Category: item.Category,
		ImageURL: item.ImageURL,
		Price:    item.Price,
		Quantity: quantity,
		AddedAt:  addedAt,
	}
}

func (c Cart) Find(itemID int64) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}
