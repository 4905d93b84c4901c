package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/shoporder/internal/domain/product"
)

// Service encapsulates cart business rules: products must exist, quantities
// must be positive, and a product appears in a cart at most once.
type Service struct {
	store    Store
	products product.Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(store Store, products product.Repository) *Service {
	return &Service{
		store:    store,
		products: products,
	}
}

// Items returns the user's current cart contents.
func (s *Service) Items(ctx context.Context, userID int64) ([]Item, error) {
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return items, nil
}

// Add puts a product into the user's cart, snapshotting the current catalog
// price. Returns product.ErrNotFound for an unknown product and
// ErrDuplicateItem when the product is already in the cart.
func (s *Service) Add(ctx context.Context, userID int64, productID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	item := Item{
		ProductID: p.ID,
		Title:     p.Title,
		Quantity:  quantity,
		UnitPrice: p.Price,
	}
	if err := s.store.Add(ctx, userID, item); err != nil {
		if errors.Is(err, ErrDuplicateItem) {
			return nil, ErrDuplicateItem
		}
		return nil, errors.Wrap(err, "add cart item")
	}

	return &item, nil
}

// Remove deletes a product from the user's cart. Stock is untouched: carts
// reserve nothing until payment is confirmed.
func (s *Service) Remove(ctx context.Context, userID int64, productID string) error {
	if err := s.store.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}
