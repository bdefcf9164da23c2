package mongodb

import (
	"fmt"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field names follow the mongomart dataset so existing collections can be served as-is.
type itemDocument struct {
	ID       int64            `bson:"_id"`
	Name     string           `bson:"title"`
	Price    any              `bson:"price"`
	Category string           `bson:"category"`
	Details  string           `bson:"description"`
	ImageURL string           `bson:"img_url,omitempty"`
	Reviews  []reviewDocument `bson:"reviews,omitempty"`
}

type reviewDocument struct {
	Author    string    `bson:"name"`
	Stars     int       `bson:"stars"`
	Text      string    `bson:"comment"`
	CreatedAt time.Time `bson:"date"`
}

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type cartItemDocument struct {
	ItemID   int64     `bson:"_id"`
	Name     string    `bson:"title"`
	Category string    `bson:"category,omitempty"`
	ImageURL string    `bson:"img_url,omitempty"`
	Price    any       `bson:"price"`
	Quantity int       `bson:"quantity"`
	AddedAt  time.Time `bson:"added_at"`
}

func encodePrice(d decimal.Decimal) (primitive.Decimal128, error) {
	p, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode price %s: %w", d, err)
	}
	return p, nil
}

// decodePrice accepts the numeric shapes found in real collections: Decimal128
// written by this service and doubles or integers written by seed scripts.
func decodePrice(v any) (decimal.Decimal, error) {
	switch p := v.(type) {
	case nil:
		return decimal.Zero, nil
	case primitive.Decimal128:
		return decimal.NewFromString(p.String())
	case float64:
		return decimal.NewFromFloat(p), nil
	case int32:
		return decimal.NewFromInt32(p), nil
	case int64:
		return decimal.NewFromInt(p), nil
	case string:
		return decimal.NewFromString(p)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %T", v)
	}
}

func (d itemDocument) toDomain() (domain.Item, error) {
	price, err := decodePrice(d.Price)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %d: %w", d.ID, err)
	}

	reviews := make([]domain.Review, 0, len(d.Reviews))
	for _, r := range d.Reviews {
		reviews = append(reviews, domain.Review{
			Author:    r.Author,
			Stars:     r.Stars,
			Text:      r.Text,
			CreatedAt: r.CreatedAt,
		})
	}

	return domain.Item{
		ID:       d.ID,
		Name:     d.Name,
		Price:    price,
		Category: d.Category,
		Details:  d.Details,
		ImageURL: d.ImageURL,
		Reviews:  reviews,
	}, nil
}

func toItems(docs []itemDocument) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(docs))
	for _, d := range docs {
		it, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (d cartDocument) toDomain() (domain.Cart, error) {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, it := range d.Items {
		line, err := it.toDomain()
		if err != nil {
			return domain.Cart{}, err
		}
		items = append(items, line)
	}
	return domain.Cart{
		UserID:    d.UserID,
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (d cartItemDocument) toDomain() (domain.CartItem, error) {
	price, err := decodePrice(d.Price)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("cart line %d: %w", d.ItemID, err)
	}
	return domain.CartItem{
		ItemID:   d.ItemID,
		Name:     d.Name,
		Category: d.Category,
		ImageURL: d.ImageURL,
		Price:    price,
		Quantity: d.Quantity,
		AddedAt:  d.AddedAt,
	}, nil
}

func newCartItemDocument(item domain.CartItem) (cartItemDocument, error) {
	price, err := encodePrice(item.Price)
	if err != nil {
		return cartItemDocument{}, err
	}
	return cartItemDocument{
		ItemID:   item.ItemID,
		Name:     item.Name,
		Category: item.Category,
		ImageURL: item.ImageURL,
		Price:    price,
		Quantity: item.Quantity,
		AddedAt:  item.AddedAt,
	}, nil
}
