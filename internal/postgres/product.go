package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shoporder/internal/domain/product"
)

const (
	productColumns = `id, title, price, category, stock_count, image_thumb, image_hi_res`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listCategoriesSQL = `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`

	// Guarded so stock_count can never go negative; zero rows affected on
	// an existing product means insufficient stock.
	decrementStockSQL = `UPDATE products SET stock_count = stock_count - $2
		WHERE id = $1 AND stock_count >= $2`

	incrementStockSQL = `UPDATE products SET stock_count = stock_count + $2 WHERE id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Inventory  = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Inventory
// backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns up to 100 catalog products matching the filter. Category
// matches exactly; the search term matches the title case-insensitively.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	query := listProductsSQL
	var args []any
	switch {
	case f.Category != "":
		query += ` WHERE category = $1`
		args = append(args, f.Category)
	case f.SearchTerm != "":
		query += ` WHERE LOWER(title) LIKE $1`
		args = append(args, "%"+strings.ToLower(f.SearchTerm)+"%")
	}
	query += ` ORDER BY id LIMIT 100`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Categories returns the distinct non-empty product categories.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var c string
		err := row.Scan(&c)
		return c, err
	})
}

// Decrement subtracts quantity from the product's stock count as a single
// conditional update. Returns InsufficientStockError when the product exists
// but holds less stock than requested, product.ErrNotFound otherwise.
func (r *ProductRepository) Decrement(ctx context.Context, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyStockMiss(ctx, productID, quantity)
	}
	return nil
}

// Increment adds quantity back to the product's stock count.
func (r *ProductRepository) Increment(ctx context.Context, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, incrementStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("incrementing stock for %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// classifyStockMiss distinguishes "product missing" from "not enough stock"
// after a guarded decrement affected zero rows.
func (r *ProductRepository) classifyStockMiss(ctx context.Context, productID string, quantity int) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %q: %w", productID, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return &product.InsufficientStockError{ProductID: productID, Requested: quantity}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Price, &p.Category, &p.StockCount,
		&p.Image.Thumb, &p.Image.HiRes,
	)
	return p, err
}
