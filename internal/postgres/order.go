package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shoporder/internal/domain/address"
	"github.com/xenking/shoporder/internal/domain/order"
	"github.com/xenking/shoporder/internal/domain/product"
)

const (
	insertOrderSQL = `INSERT INTO orders (user_id, address_id, status, total_cost)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_placed_time`

	insertOrderItemSQL = `INSERT INTO order_products (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	updateOrderTotalSQL = `UPDATE orders SET total_cost = $2 WHERE id = $1`

	orderAddressEchoSQL = `SELECT address, postcode FROM addresses WHERE id = $1`

	getOrderSQL = `SELECT o.id, o.user_id, o.address_id, o.status, o.total_cost, o.order_placed_time,
			a.address, a.postcode
		FROM orders o
		JOIN addresses a ON a.id = o.address_id
		WHERE o.id = $1`

	getOrderItemsSQL = `SELECT op.product_id, p.title, op.quantity, op.unit_price
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = $1
		ORDER BY op.product_id`

	listOrdersSQL = `SELECT id, status, total_cost, order_placed_time
		FROM orders WHERE user_id = $1 ORDER BY id DESC`

	orderOwnerSQL = `SELECT user_id FROM orders WHERE id = $1`

	orderStatusSQL = `SELECT status FROM orders WHERE id = $1`

	// Conditional transitions: only one of two racing calls can observe a
	// non-zero row count, which serializes confirm/cancel races at the
	// data store.
	confirmOrderSQL = `UPDATE orders
		SET status = $2, order_placed_time = now()
		WHERE id = $1 AND status = $3
		RETURNING user_id`

	cancelOrderSQL = `UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`

	// Ordered so concurrent confirmations lock product rows in the same
	// sequence and cannot deadlock each other.
	lineItemsForConfirmSQL = `SELECT product_id, quantity FROM order_products
		WHERE order_id = $1 ORDER BY product_id`

	clearCartRowSQL = `DELETE FROM cart_products WHERE user_id = $1 AND product_id = $2`
)

// foreignKeyViolation is the PostgreSQL error code for FK breaches.
const foreignKeyViolation = "23503"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// multi-statement operation runs on one transactional connection acquired
// from the pool and released on all exit paths.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreatePending persists the order row, its line items and the final total in
// one transaction, then fills in the generated id, placed time and address
// echo. A failure at any step rolls everything back: no partial order, no
// orphaned line items.
func (r *OrderRepository) CreatePending(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, insertOrderSQL, o.UserID, o.AddressID, o.Status, o.TotalCost).
		Scan(&o.ID, &o.PlacedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return address.ErrNotFound
		}
		return fmt.Errorf("inserting order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, insertOrderItemSQL, o.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("inserting line item %q: %w", it.ProductID, err)
		}
	}

	if _, err := tx.Exec(ctx, updateOrderTotalSQL, o.ID, o.TotalCost); err != nil {
		return fmt.Errorf("updating order total: %w", err)
	}

	if err := tx.QueryRow(ctx, orderAddressEchoSQL, o.AddressID).Scan(&o.Address, &o.Postcode); err != nil {
		return fmt.Errorf("reading order address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order: %w", err)
	}
	return nil
}

// Get returns the full order projection: order row joined with its address,
// plus line items joined with product titles.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.Status, &o.TotalCost, &o.PlacedAt,
		&o.Address, &o.Postcode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d items: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("scanning order %d items: %w", id, err)
	}

	return &o, nil
}

// ListByUser returns the user's order summaries, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Summary, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Summary, error) {
		var s order.Summary
		err := row.Scan(&s.ID, &s.Status, &s.TotalCost, &s.PlacedAt)
		return s, err
	})
}

// OwnerOf returns the owning user id of an order.
func (r *OrderRepository) OwnerOf(ctx context.Context, id int64) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx, orderOwnerSQL, id).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, order.ErrNotFound
		}
		return 0, fmt.Errorf("getting order %d owner: %w", id, err)
	}
	return userID, nil
}

// ConfirmPending applies the full payment-confirmation transaction:
//
//  1. pending -> processing as a conditional update, re-stamping the placed
//     time to the confirmation instant;
//  2. guarded stock decrement for every line item;
//  3. removal of the matching cart rows for the order's user (absent rows
//     are fine: cart deletion is keyed by product, not by an order link).
//
// A blocked transition (already processing, or cancelled) is reported via
// the TransitionResult. Any error rolls the whole transaction back, leaving
// the order pending with no stock or cart changes applied.
func (r *OrderRepository) ConfirmPending(ctx context.Context, id int64) (order.TransitionResult, error) {
	var res order.TransitionResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var userID int64
	err = tx.QueryRow(ctx, confirmOrderSQL, id, order.StatusProcessing, order.StatusPending).
		Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the conditional update: report the state that
			// blocked us instead of re-applying side effects.
			return r.blockedTransition(ctx, id)
		}
		return res, fmt.Errorf("confirming order %d: %w", id, err)
	}

	items, err := r.lineItemsForConfirm(ctx, tx, id)
	if err != nil {
		return res, err
	}

	for _, it := range items {
		tag, err := tx.Exec(ctx, decrementStockSQL, it.productID, it.quantity)
		if err != nil {
			return res, fmt.Errorf("decrementing stock for %q: %w", it.productID, err)
		}
		if tag.RowsAffected() == 0 {
			return res, r.classifyConfirmStockMiss(ctx, tx, it.productID, it.quantity)
		}

		if _, err := tx.Exec(ctx, clearCartRowSQL, userID, it.productID); err != nil {
			return res, fmt.Errorf("clearing cart row %q for user %d: %w", it.productID, userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("committing confirmation of order %d: %w", id, err)
	}

	res.Applied = true
	res.Status = order.StatusProcessing
	return res, nil
}

// CancelPending transitions pending -> cancelled as a single conditional
// update. One statement is already atomic, so no explicit transaction is
// needed.
func (r *OrderRepository) CancelPending(ctx context.Context, id int64) (order.TransitionResult, error) {
	var res order.TransitionResult

	tag, err := r.pool.Exec(ctx, cancelOrderSQL, id, order.StatusCancelled, order.StatusPending)
	if err != nil {
		return res, fmt.Errorf("cancelling order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.blockedTransition(ctx, id)
	}

	res.Applied = true
	res.Status = order.StatusCancelled
	return res, nil
}

type confirmItem struct {
	productID string
	quantity  int
}

func (r *OrderRepository) lineItemsForConfirm(ctx context.Context, tx pgx.Tx, orderID int64) ([]confirmItem, error) {
	rows, err := tx.Query(ctx, lineItemsForConfirmSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading line items for order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (confirmItem, error) {
		var it confirmItem
		err := row.Scan(&it.productID, &it.quantity)
		return it, err
	})
}

// blockedTransition reads the current status after a conditional update
// affected zero rows: either the order does not exist, or it already left
// the pending state.
func (r *OrderRepository) blockedTransition(ctx context.Context, id int64) (order.TransitionResult, error) {
	var res order.TransitionResult
	err := r.pool.QueryRow(ctx, orderStatusSQL, id).Scan(&res.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, order.ErrNotFound
		}
		return res, fmt.Errorf("reading status of order %d: %w", id, err)
	}
	return res, nil
}

func (r *OrderRepository) classifyConfirmStockMiss(ctx context.Context, tx pgx.Tx, productID string, quantity int) error {
	var exists bool
	if err := tx.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %q: %w", productID, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return &product.InsufficientStockError{ProductID: productID, Requested: quantity}
}

func scanLineItem(row pgx.CollectableRow) (order.LineItem, error) {
	var li order.LineItem
	err := row.Scan(&li.ProductID, &li.Title, &li.Quantity, &li.UnitPrice)
	return li, err
}
