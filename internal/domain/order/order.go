package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the closed set of order lifecycle states.
type Status string

const (
	// StatusPending is the initial state: priced and addressed, but not
	// paid. A pending order reserves no stock.
	StatusPending Status = "pending"
	// StatusProcessing is the terminal success state: payment confirmed,
	// stock decremented, ordered cart rows cleared.
	StatusProcessing Status = "processing"
	// StatusCancelled is the terminal failure state, reachable only from
	// pending.
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is legal.
// No transition leaves processing or cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusProcessing || next == StatusCancelled)
}

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when the order id does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when order creation is attempted with an
	// empty cart, before any transaction begins.
	ErrEmptyCart = errors.New("cart is empty")
)

// IllegalTransitionError indicates a requested status transition is not legal
// from the order's current state.
type IllegalTransitionError struct {
	OrderID   int64
	Current   Status
	Requested Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %d: illegal transition %s -> %s", e.OrderID, e.Current, e.Requested)
}

// LineItem is the immutable per-product record of what was charged within an
// order. UnitPrice is the cart's snapshotted price at order time.
type LineItem struct {
	ProductID string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns UnitPrice multiplied by Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a priced, addressed snapshot of a cart at a point in time.
// Contents and TotalCost are fixed at creation; only Status and PlacedAt
// change afterwards, exclusively through the Lifecycle.
type Order struct {
	ID        int64
	UserID    int64
	AddressID int64
	Status    Status
	TotalCost decimal.Decimal
	PlacedAt  time.Time
	Address   string
	Postcode  string
	Items     []LineItem
}

// Summary is the per-user order listing projection.
type Summary struct {
	ID        int64
	Status    Status
	TotalCost decimal.Decimal
	PlacedAt  time.Time
}

// TransitionResult reports the outcome of an atomic conditional status
// update. When Applied is false, Status holds the state that blocked the
// transition.
type TransitionResult struct {
	Applied bool
	Status  Status
}

// Repository defines persistence operations for orders. Multi-statement
// operations run inside a single transaction: a failure at any step leaves no
// partial state behind.
type Repository interface {
	// CreatePending inserts the order and its line items atomically and
	// fills in ID, PlacedAt and the address echo. Returns
	// address.ErrNotFound when o.AddressID references nothing.
	CreatePending(ctx context.Context, o *Order) error
	// Get returns the full order projection (order + address + line items
	// with product titles), or ErrNotFound.
	Get(ctx context.Context, id int64) (*Order, error)
	// ListByUser returns the user's order summaries, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Summary, error)
	// OwnerOf returns the owning user id of an order, or ErrNotFound.
	OwnerOf(ctx context.Context, id int64) (int64, error)
	// ConfirmPending atomically transitions pending -> processing,
	// re-stamps the placed time, decrements stock for every line item and
	// clears the matching cart rows, all in one transaction. A blocked
	// transition is reported via TransitionResult, not an error.
	ConfirmPending(ctx context.Context, id int64) (TransitionResult, error)
	// CancelPending atomically transitions pending -> cancelled.
	CancelPending(ctx context.Context, id int64) (TransitionResult, error)
}
