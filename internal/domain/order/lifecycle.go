package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Lifecycle orchestrates the legal status transitions of existing orders.
// Each transition is a single atomic conditional update at the store level,
// so two racing calls on the same order serialize there: exactly one observes
// a successful transition and the other sees the blocking state.
type Lifecycle struct {
	orders Repository
	lg     *zap.Logger
}

// NewLifecycle creates a Lifecycle with the required dependencies.
func NewLifecycle(orders Repository, lg *zap.Logger) *Lifecycle {
	return &Lifecycle{
		orders: orders,
		lg:     lg.Named("order.lifecycle"),
	}
}

// ConfirmPaid handles the payment gateway's success signal for an order.
//
// On success the order moves pending -> processing, its placed time is
// re-stamped to the confirmation instant, every line item's quantity is
// subtracted from the product's stock and the matching cart rows are removed,
// all in one transaction. A repeated signal for an already-processing order
// is a no-op: stock is decremented exactly once. A signal for a cancelled
// order fails with IllegalTransitionError so the gateway sees the fault.
func (lc *Lifecycle) ConfirmPaid(ctx context.Context, orderID int64) error {
	res, err := lc.orders.ConfirmPending(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "confirm order")
	}

	if res.Applied {
		lc.lg.Info("order confirmed", zap.Int64("order_id", orderID))
		return nil
	}

	switch res.Status {
	case StatusProcessing:
		lc.lg.Info("order already confirmed, ignoring repeated payment signal",
			zap.Int64("order_id", orderID))
		return nil
	default:
		return &IllegalTransitionError{
			OrderID:   orderID,
			Current:   res.Status,
			Requested: StatusProcessing,
		}
	}
}

// Cancel moves a pending order to cancelled. A pending order reserved
// nothing, so no stock or cart changes apply. Cancelling an already-cancelled
// order succeeds as a no-op; any other state fails with
// IllegalTransitionError naming the current status.
//
// Ownership of the order must be verified by the caller before invoking this.
func (lc *Lifecycle) Cancel(ctx context.Context, orderID int64) error {
	res, err := lc.orders.CancelPending(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "cancel order")
	}

	if res.Applied {
		lc.lg.Info("order cancelled", zap.Int64("order_id", orderID))
		return nil
	}

	if res.Status == StatusCancelled {
		// Idempotent: the order is already where the caller wants it.
		return nil
	}

	return &IllegalTransitionError{
		OrderID:   orderID,
		Current:   res.Status,
		Requested: StatusCancelled,
	}
}
