package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a stock decrement would drive a product's
// stock count below zero.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID         string
	Title      string
	Price      decimal.Decimal
	Category   string
	StockCount int
	Image      Image
}

// Image holds image URLs for a product.
type Image struct {
	Thumb string
	HiRes string
}

// Filter narrows a catalog listing. The zero value lists everything.
type Filter struct {
	Category   string
	SearchTerm string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Inventory adjusts a product's stock count. Both operations must be single
// atomic update statements so that concurrent orders touching the same
// product never lose updates. Decrement fails with InsufficientStockError
// instead of letting the count go negative.
type Inventory interface {
	Decrement(ctx context.Context, productID string, quantity int) error
	Increment(ctx context.Context, productID string, quantity int) error
}
