package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shoporder/internal/domain/cart"
)

const (
	listCartItemsSQL = `SELECT cp.product_id, p.title, cp.quantity, cp.unit_price
		FROM cart_products cp
		JOIN products p ON p.id = cp.product_id
		WHERE cp.user_id = $1
		ORDER BY cp.added_at`

	addCartItemSQL = `INSERT INTO cart_products (user_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	removeCartItemSQL = `DELETE FROM cart_products WHERE user_id = $1 AND product_id = $2`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Items returns the user's cart line items joined with product titles.
func (s *CartStore) Items(ctx context.Context, userID int64) ([]cart.Item, error) {
	rows, err := s.pool.Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items for user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// Add inserts a new cart line item. The (user_id, product_id) primary key
// turns a duplicate add into cart.ErrDuplicateItem.
func (s *CartStore) Add(ctx context.Context, userID int64, item cart.Item) error {
	_, err := s.pool.Exec(ctx, addCartItemSQL, userID, item.ProductID, item.Quantity, item.UnitPrice)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return cart.ErrDuplicateItem
		}
		return fmt.Errorf("adding cart item %q for user %d: %w", item.ProductID, userID, err)
	}
	return nil
}

// Remove deletes a cart line item, reporting cart.ErrItemNotFound explicitly
// instead of treating a zero-row delete as success.
func (s *CartStore) Remove(ctx context.Context, userID int64, productID string) error {
	tag, err := s.pool.Exec(ctx, removeCartItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing cart item %q for user %d: %w", productID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ProductID, &it.Title, &it.Quantity, &it.UnitPrice)
	return it, err
}
