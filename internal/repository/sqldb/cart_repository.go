package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
)

type CartRepository struct {
	*DB
	now func() time.Time
}

func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{DB: db, now: time.Now}
}

var _ repository.CartRepository = (*CartRepository)(nil)

const cartItemColumns = `item_id, name, category, img_url, price, quantity, added_at`

func (r *CartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := domain.Cart{UserID: userID}

	err := r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCartNotFound
	}
	if err != nil {
		return nil, wrapErr("failed to get cart", err)
	}

	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY added_at, item_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr("failed to query cart items", err)
	}
	defer rows.Close()

	cart.Items = make([]domain.CartItem, 0)
	for rows.Next() {
		line, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, line)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("row iteration error", err)
	}
	return &cart, nil
}

func (r *CartRepository) FindItem(ctx context.Context, userID string, itemID int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 AND item_id = $2`

	line, err := scanCartItem(r.db.QueryRowContext(ctx, query, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// AddItem upserts the cart row and the line in one transaction. The conflict
// clause on (user_id, item_id) makes concurrent adds of the same item sum up.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := r.now().UTC()

	return r.execTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO carts (user_id, created_at, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = excluded.updated_at
		`, userID, now, now)
		if err != nil {
			return wrapErr("failed to upsert cart", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, `+cartItemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity
		`, userID, item.ItemID, item.Name, item.Category, item.ImageURL, item.Price.String(), item.Quantity, item.AddedAt.UTC())
		if err != nil {
			return wrapErr("failed to add item to cart", err)
		}
		return nil
	})
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, userID string, itemID int64, quantity int) error {
	return r.execTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1 WHERE user_id = $2 AND item_id = $3`,
			quantity, userID, itemID)
		if err != nil {
			return wrapErr("failed to update item quantity", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return wrapErr("failed to read affected rows", err)
		}
		if affected == 0 {
			return repository.ErrCartItemNotFound
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE carts SET updated_at = $1 WHERE user_id = $2`, r.now().UTC(), userID)
		if err != nil {
			return wrapErr("failed to touch cart", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row rowScanner) (domain.CartItem, error) {
	var line domain.CartItem
	err := row.Scan(
		&line.ItemID,
		&line.Name,
		&line.Category,
		&line.ImageURL,
		&line.Price,
		&line.Quantity,
		&line.AddedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, err
	}
	if err != nil {
		return domain.CartItem{}, wrapErr("failed to scan cart item", err)
	}
	return line, nil
}
