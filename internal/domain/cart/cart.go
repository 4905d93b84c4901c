package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	// ErrItemNotFound is returned when a cart line item does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrDuplicateItem is returned when the product is already in the cart.
	ErrDuplicateItem = errors.New("product already in cart")
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is one cart line item: a product with a quantity and the unit price
// snapshotted at add time. The snapshot is what later becomes the order line
// item's price, independent of catalog price changes.
type Item struct {
	ProductID string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Store defines persistence operations for per-user carts.
type Store interface {
	// Items returns the user's current cart line items.
	Items(ctx context.Context, userID int64) ([]Item, error)
	// Add inserts a new line item. Returns ErrDuplicateItem when the
	// product is already in the user's cart.
	Add(ctx context.Context, userID int64, item Item) error
	// Remove deletes a line item. Returns ErrItemNotFound when the
	// product is not in the user's cart.
	Remove(ctx context.Context, userID int64, productID string) error
}
