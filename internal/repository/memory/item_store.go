package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
)

// ItemStore implements repository.ItemRepository with in-memory storage
type ItemStore struct {
	mu    sync.RWMutex
	items map[int64]*domain.Item // itemID -> item
}

// NewItemStore creates an empty in-memory catalog, optionally seeded with items
func NewItemStore(items ...domain.Item) *ItemStore {
	s := &ItemStore{items: make(map[int64]*domain.Item)}
	for _, it := range items {
		s.put(it)
	}
	return s
}

var _ repository.ItemRepository = (*ItemStore)(nil)

// Categories returns distinct categories with their item counts, sorted by name
func (s *ItemStore) Categories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, it := range s.items {
		counts[it.Category]++
	}

	categories := make([]domain.Category, 0, len(counts))
	for name, n := range counts {
		categories = append(categories, domain.Category{Name: name, ItemCount: n})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *ItemStore) ListItems(_ context.Context, category string, offset, limit int) ([]domain.Item, error) {
	return s.page(inCategory(category), offset, limit), nil
}

func (s *ItemStore) CountItems(_ context.Context, category string) (int, error) {
	return s.count(inCategory(category)), nil
}

func (s *ItemStore) SearchItems(_ context.Context, query string, offset, limit int) ([]domain.Item, error) {
	return s.page(matches(query), offset, limit), nil
}

func (s *ItemStore) CountSearchItems(_ context.Context, query string) (int, error) {
	return s.count(matches(query)), nil
}

func (s *ItemStore) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, exists := s.items[id]
	if !exists {
		return nil, repository.ErrItemNotFound
	}
	item := cloneItem(it)
	return &item, nil
}

func (s *ItemStore) RelatedItems(_ context.Context, excludeID int64, limit int) ([]domain.Item, error) {
	return s.page(func(it *domain.Item) bool { return it.ID != excludeID }, 0, limit), nil
}

// AddReview appends a review to the item and returns the updated item
func (s *ItemStore) AddReview(_ context.Context, itemID int64, review domain.Review) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, exists := s.items[itemID]
	if !exists {
		return nil, repository.ErrItemNotFound
	}
	it.Reviews = append(it.Reviews, review)

	item := cloneItem(it)
	return &item, nil
}

// SaveItem inserts the item or replaces its catalog fields, keeping existing reviews
func (s *ItemStore) SaveItem(_ context.Context, item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.items[item.ID]; exists {
		item.Reviews = existing.Reviews
	} else {
		item.Reviews = nil
	}
	s.put(item)
	return nil
}

func (s *ItemStore) put(item domain.Item) {
	stored := cloneItem(&item)
	s.items[item.ID] = &stored
}

func inCategory(category string) func(*domain.Item) bool {
	return func(it *domain.Item) bool {
		return category == "" || it.Category == category
	}
}

func matches(query string) func(*domain.Item) bool {
	q := strings.ToLower(query)
	return func(it *domain.Item) bool {
		return strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.Details), q)
	}
}

// sorted returns the items accepted by keep ordered by id. Caller holds the lock.
func (s *ItemStore) sorted(keep func(*domain.Item) bool) []*domain.Item {
	result := make([]*domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if keep(it) {
			result = append(result, it)
		}
	}
	slices.SortFunc(result, func(a, b *domain.Item) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return result
}

func (s *ItemStore) page(keep func(*domain.Item) bool, offset, limit int) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted(keep)
	result := make([]domain.Item, 0)
	if offset < 0 || offset >= len(all) || limit <= 0 {
		return result
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	for _, it := range all[offset:end] {
		result = append(result, cloneItem(it))
	}
	return result
}

func (s *ItemStore) count(keep func(*domain.Item) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sorted(keep))
}

func cloneItem(it *domain.Item) domain.Item {
	c := *it
	c.Reviews = append(make([]domain.Review, 0, len(it.Reviews)), it.Reviews...)
	return c
}
