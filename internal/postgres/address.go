package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shoporder/internal/domain/address"
)

const (
	getAddressIDSQL = `SELECT id FROM addresses WHERE address = $1 AND postcode = $2`

	// ON CONFLICT keeps Resolve race-safe: two concurrent resolves of the
	// same (address, postcode) both land on the one stored row.
	insertAddressSQL = `INSERT INTO addresses (address, postcode) VALUES ($1, $2)
		ON CONFLICT (address, postcode) DO UPDATE SET address = EXCLUDED.address
		RETURNING id`

	getAddressByIDSQL = `SELECT id, address, postcode FROM addresses WHERE id = $1`
)

var _ address.Registry = (*AddressRegistry)(nil)

// AddressRegistry implements address.Registry backed by PostgreSQL.
type AddressRegistry struct {
	pool *pgxpool.Pool
}

// NewAddressRegistry returns an AddressRegistry that uses the given pool.
func NewAddressRegistry(pool *pgxpool.Pool) *AddressRegistry {
	return &AddressRegistry{pool: pool}
}

// Resolve returns the id for an exact (text, postcode) match, inserting the
// address first when none exists.
func (r *AddressRegistry) Resolve(ctx context.Context, text, postcode string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, getAddressIDSQL, text, postcode).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("looking up address: %w", err)
	}

	if err := r.pool.QueryRow(ctx, insertAddressSQL, text, postcode).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting address: %w", err)
	}
	return id, nil
}

// GetByID returns an existing address or address.ErrNotFound.
func (r *AddressRegistry) GetByID(ctx context.Context, id int64) (*address.Address, error) {
	var a address.Address
	err := r.pool.QueryRow(ctx, getAddressByIDSQL, id).Scan(&a.ID, &a.Text, &a.Postcode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}
	return &a, nil
}
