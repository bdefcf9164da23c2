package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
	"github.com/shopspring/decimal"
)

// RelatedItemsLimit is how many items GetRelatedItems suggests.
const RelatedItemsLimit = 4

type CatalogService struct {
	items repository.ItemRepository
	now   func() time.Time
}

func NewCatalogService(items repository.ItemRepository) *CatalogService {
	return &CatalogService{
		items: items,
		now:   time.Now,
	}
}

// ListCategories returns the synthetic "All" category first, counting the
// whole catalog, followed by every real category in name order.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.items.Categories(ctx)
	if err != nil {
		return nil, storeErr("list categories", err)
	}

	total := 0
	for _, c := range categories {
		total += c.ItemCount
	}

	result := make([]domain.Category, 0, len(categories)+1)
	result = append(result, domain.Category{Name: domain.AllCategories, ItemCount: total})
	return append(result, categories...), nil
}

func (s *CatalogService) ListItems(ctx context.Context, category string, page, pageSize int) ([]domain.Item, error) {
	offset, ok, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.Item{}, nil
	}

	items, err := s.items.ListItems(ctx, categoryFilter(category), offset, pageSize)
	if err != nil {
		return nil, storeErr("list items", err)
	}
	return items, nil
}

func (s *CatalogService) CountItems(ctx context.Context, category string) (int, error) {
	n, err := s.items.CountItems(ctx, categoryFilter(category))
	if err != nil {
		return 0, storeErr("count items", err)
	}
	return n, nil
}

// SearchItems pages through items whose name or details contain query,
// ignoring case. A blank query matches the whole catalog.
func (s *CatalogService) SearchItems(ctx context.Context, query string, page, pageSize int) ([]domain.Item, error) {
	offset, ok, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.Item{}, nil
	}

	items, err := s.items.SearchItems(ctx, searchQuery(query), offset, pageSize)
	if err != nil {
		return nil, storeErr("search items", err)
	}
	return items, nil
}

func (s *CatalogService) CountSearchItems(ctx context.Context, query string) (int, error) {
	n, err := s.items.CountSearchItems(ctx, searchQuery(query))
	if err != nil {
		return 0, storeErr("count search items", err)
	}
	return n, nil
}

// GetItem reports false when no item has the id.
func (s *CatalogService) GetItem(ctx context.Context, id int64) (domain.Item, bool, error) {
	item, err := s.items.GetItem(ctx, id)
	if errors.Is(err, repository.ErrItemNotFound) {
		return domain.Item{}, false, nil
	}
	if err != nil {
		return domain.Item{}, false, storeErr("get item", err)
	}
	return *item, true, nil
}

func (s *CatalogService) GetRelatedItems(ctx context.Context, excludeID int64) ([]domain.Item, error) {
	items, err := s.items.RelatedItems(ctx, excludeID, RelatedItemsLimit)
	if err != nil {
		return nil, storeErr("related items", err)
	}
	return items, nil
}

func (s *CatalogService) AddReview(ctx context.Context, itemID int64, text, author string, stars int) (domain.Item, error) {
	if stars < 1 || stars > 5 {
		return domain.Item{}, invalid("stars", "must be between 1 and 5")
	}

	review := domain.Review{
		Author:    author,
		Stars:     stars,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}

	item, err := s.items.AddReview(ctx, itemID, review)
	if errors.Is(err, repository.ErrItemNotFound) {
		return domain.Item{}, &NotFoundError{Resource: "item", ID: strconv.FormatInt(itemID, 10)}
	}
	if err != nil {
		return domain.Item{}, storeErr("add review", err)
	}
	return *item, nil
}

// SaveItem creates the item or updates its catalog fields. Reviews already on
// the item are kept.
func (s *CatalogService) SaveItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	switch {
	case item.ID <= 0:
		return domain.Item{}, invalid("id", "must be positive")
	case strings.TrimSpace(item.Name) == "":
		return domain.Item{}, invalid("name", "must not be blank")
	}
	if err := validatePrice(item.Price); err != nil {
		return domain.Item{}, err
	}

	if err := s.items.SaveItem(ctx, item); err != nil {
		return domain.Item{}, storeErr("save item", err)
	}

	saved, err := s.items.GetItem(ctx, item.ID)
	if err != nil {
		return domain.Item{}, storeErr("get item", err)
	}
	return *saved, nil
}

// maxPrice and priceScale bound prices to what every store keeps exactly.
var maxPrice = decimal.New(1, 10)

const priceScale = 2

func validatePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return invalid("price", "must not be negative")
	case price.GreaterThanOrEqual(maxPrice):
		return invalid("price", "must be below "+maxPrice.String())
	case !price.Equal(price.Round(priceScale)):
		return invalid("price", "must have at most 2 decimal places")
	}
	return nil
}

// ComputeAggregateRating is the plain mean of review stars, (0, 0) without reviews.
func ComputeAggregateRating(item domain.Item) domain.Rating {
	sum := 0
	for _, r := range item.Reviews {
		sum += r.Stars
	}
	if len(item.Reviews) == 0 {
		return domain.Rating{Average: 0, Count: 0}
	}
	return domain.Rating{
		Average: float64(sum) / float64(len(item.Reviews)),
		Count:   len(item.Reviews),
	}
}

func categoryFilter(category string) string {
	if strings.TrimSpace(category) == "" || category == domain.AllCategories {
		return ""
	}
	return category
}

func searchQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}
	return query
}
