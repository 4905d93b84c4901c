package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced address does not exist.
var ErrNotFound = errors.New("address not found")

// Address is an immutable delivery address. Addresses are deduplicated by
// exact (Text, Postcode) match on creation.
type Address struct {
	ID       int64
	Text     string
	Postcode string
}

// Registry resolves delivery addresses.
type Registry interface {
	// Resolve returns the id of the address matching (text, postcode)
	// exactly, inserting it first when no such address exists.
	Resolve(ctx context.Context, text, postcode string) (int64, error)
	// GetByID returns an existing address.
	GetByID(ctx context.Context, id int64) (*Address, error)
}
