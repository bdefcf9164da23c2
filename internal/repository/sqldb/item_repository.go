package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
)

type ItemRepository struct {
	*DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{DB: db}
}

var _ repository.ItemRepository = (*ItemRepository)(nil)

const itemColumns = `id, name, price, category, details, img_url`

// likePattern turns a user query into a literal, case-folded LIKE pattern.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(query)) + "%"
}

func (r *ItemRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT category, COUNT(*)
		FROM items
		GROUP BY category
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("failed to query categories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.Name, &c.ItemCount); err != nil {
			return nil, wrapErr("failed to scan category", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("row iteration error", err)
	}
	return categories, nil
}

func (r *ItemRepository) ListItems(ctx context.Context, category string, offset, limit int) ([]domain.Item, error) {
	if category == "" {
		query := `SELECT ` + itemColumns + ` FROM items ORDER BY id LIMIT $1 OFFSET $2`
		return r.queryItems(ctx, query, limit, offset)
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE category = $1 ORDER BY id LIMIT $2 OFFSET $3`
	return r.queryItems(ctx, query, category, limit, offset)
}

func (r *ItemRepository) CountItems(ctx context.Context, category string) (int, error) {
	if category == "" {
		return r.count(ctx, `SELECT COUNT(*) FROM items`)
	}
	return r.count(ctx, `SELECT COUNT(*) FROM items WHERE category = $1`, category)
}

func (r *ItemRepository) SearchItems(ctx context.Context, query string, offset, limit int) ([]domain.Item, error) {
	if query == "" {
		return r.ListItems(ctx, "", offset, limit)
	}
	q := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE ` + r.lowerExpr("name") + ` LIKE $1 ESCAPE '\' OR ` + r.lowerExpr("details") + ` LIKE $2 ESCAPE '\'
		ORDER BY id
		LIMIT $3 OFFSET $4
	`
	pattern := likePattern(query)
	return r.queryItems(ctx, q, pattern, pattern, limit, offset)
}

func (r *ItemRepository) CountSearchItems(ctx context.Context, query string) (int, error) {
	if query == "" {
		return r.CountItems(ctx, "")
	}
	q := `SELECT COUNT(*) FROM items WHERE ` + r.lowerExpr("name") + ` LIKE $1 ESCAPE '\' OR ` + r.lowerExpr("details") + ` LIKE $2 ESCAPE '\'`
	pattern := likePattern(query)
	return r.count(ctx, q, pattern, pattern)
}

func (r *ItemRepository) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return getItem(ctx, r.db, id)
}

func (r *ItemRepository) RelatedItems(ctx context.Context, excludeID int64, limit int) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id <> $1 ORDER BY id LIMIT $2`
	return r.queryItems(ctx, query, excludeID, limit)
}

func (r *ItemRepository) AddReview(ctx context.Context, itemID int64, review domain.Review) (*domain.Item, error) {
	var item *domain.Item

	err := r.execTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = $1`, itemID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrItemNotFound
		}
		if err != nil {
			return wrapErr("failed to check item", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (item_id, author, stars, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
			itemID, review.Author, review.Stars, review.Text, review.CreatedAt.UTC(),
		)
		if err != nil {
			return wrapErr("failed to insert review", err)
		}

		item, err = getItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SaveItem inserts the item or overwrites its catalog fields. Reviews live in
// their own table and are never touched.
func (r *ItemRepository) SaveItem(ctx context.Context, item domain.Item) error {
	query := `
		INSERT INTO items (id, name, price, category, details, img_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			category = excluded.category,
			details = excluded.details,
			img_url = excluded.img_url
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.Name, item.Price.String(), item.Category, item.Details, item.ImageURL)
	if err != nil {
		return wrapErr("failed to save item", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ItemRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapErr("failed to count items", err)
	}
	return n, nil
}

func (r *ItemRepository) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	items, err := scanItems(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadReviews(ctx, r.db, items); err != nil {
		return nil, err
	}
	return items, nil
}

func scanItems(ctx context.Context, q querier, query string, args ...any) ([]domain.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("failed to query items", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var it domain.Item
		err := rows.Scan(
			&it.ID,
			&it.Name,
			&it.Price,
			&it.Category,
			&it.Details,
			&it.ImageURL,
		)
		if err != nil {
			return nil, wrapErr("failed to scan item", err)
		}
		it.Reviews = []domain.Review{}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("row iteration error", err)
	}
	return items, nil
}

func getItem(ctx context.Context, q querier, id int64) (*domain.Item, error) {
	items, err := scanItems(ctx, q, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, repository.ErrItemNotFound
	}
	if err := loadReviews(ctx, q, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// loadReviews fills Reviews for every item with a single query, in insertion order.
func loadReviews(ctx context.Context, q querier, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[int64]int, len(items))
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items))
	for i, it := range items {
		index[it.ID] = i
		args = append(args, it.ID)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := `
		SELECT item_id, author, stars, body, created_at
		FROM reviews
		WHERE item_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY id
	`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapErr("failed to query reviews", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID int64
			rv     domain.Review
		)
		if err := rows.Scan(&itemID, &rv.Author, &rv.Stars, &rv.Text, &rv.CreatedAt); err != nil {
			return wrapErr("failed to scan review", err)
		}
		i := index[itemID]
		items[i].Reviews = append(items[i].Reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return wrapErr("row iteration error", err)
	}
	return nil
}
