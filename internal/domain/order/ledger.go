package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shoporder/internal/domain/cart"
)

// Ledger turns a user's cart into a durable pending order with immutable line
// items and a locked-in total.
type Ledger struct {
	carts  cart.Store
	orders Repository
}

// NewLedger creates a Ledger with the required dependencies.
func NewLedger(carts cart.Store, orders Repository) *Ledger {
	return &Ledger{
		carts:  carts,
		orders: orders,
	}
}

// CreatePendingOrder snapshots the user's cart into a new pending order.
//
// The cart-empty check happens before any transaction begins. The order row,
// its line items and the final total are persisted atomically; on any failure
// nothing is left behind. The cart itself is untouched and no stock moves: a
// pending order is a priced proposal awaiting payment.
func (l *Ledger) CreatePendingOrder(ctx context.Context, userID, addressID int64) (*Order, error) {
	items, err := l.carts.Items(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lineItems := make([]LineItem, len(items))
	total := decimal.Zero
	for i, it := range items {
		lineItems[i] = LineItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
		total = total.Add(lineItems[i].Subtotal())
	}

	o := &Order{
		UserID:    userID,
		AddressID: addressID,
		Status:    StatusPending,
		TotalCost: total.Round(2),
		Items:     lineItems,
	}
	if err := l.orders.CreatePending(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create pending order")
	}

	return o, nil
}
