package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shoporder/internal/domain/product"
)

// --- Mock implementations ---

type mockStore struct {
	items     []Item
	addErr    error
	removeErr error

	added *Item
}

func (m *mockStore) Items(_ context.Context, _ int64) ([]Item, error) { return m.items, nil }

func (m *mockStore) Add(_ context.Context, _ int64, item Item) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = &item
	return nil
}

func (m *mockStore) Remove(_ context.Context, _ int64, _ string) error { return m.removeErr }

type mockProducts struct {
	product *product.Product
	err     error
}

func (m *mockProducts) List(_ context.Context, _ product.Filter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProducts) GetByID(_ context.Context, _ string) (*product.Product, error) {
	return m.product, m.err
}

func (m *mockProducts) Categories(_ context.Context) ([]string, error) { return nil, nil }

// --- Tests ---

func TestAdd_SnapshotsCatalogPrice(t *testing.T) {
	store := &mockStore{}
	products := &mockProducts{product: &product.Product{
		ID:    "p1",
		Title: "Mouse",
		Price: decimal.RequireFromString("10.00"),
	}}
	svc := NewService(store, products)

	item, err := svc.Add(context.Background(), 1, "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, "Mouse", item.Title)
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(item.UnitPrice))
	require.NotNil(t, store.added)
	assert.True(t, item.UnitPrice.Equal(store.added.UnitPrice))
}

func TestAdd_UnknownProduct(t *testing.T) {
	svc := NewService(&mockStore{}, &mockProducts{err: product.ErrNotFound})

	_, err := svc.Add(context.Background(), 1, "missing", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAdd_DuplicateItem(t *testing.T) {
	store := &mockStore{addErr: ErrDuplicateItem}
	products := &mockProducts{product: &product.Product{ID: "p1", Title: "Mouse"}}
	svc := NewService(store, products)

	_, err := svc.Add(context.Background(), 1, "p1", 1)
	require.ErrorIs(t, err, ErrDuplicateItem)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	svc := NewService(&mockStore{}, &mockProducts{})

	for _, qty := range []int{0, -1} {
		_, err := svc.Add(context.Background(), 1, "p1", qty)
		require.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", qty)
	}
}

func TestAdd_StoreError(t *testing.T) {
	store := &mockStore{addErr: errors.New("db down")}
	products := &mockProducts{product: &product.Product{ID: "p1"}}
	svc := NewService(store, products)

	_, err := svc.Add(context.Background(), 1, "p1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add cart item")
}

func TestRemove_ItemNotFound(t *testing.T) {
	svc := NewService(&mockStore{removeErr: ErrItemNotFound}, &mockProducts{})

	err := svc.Remove(context.Background(), 1, "p1")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemove_OK(t *testing.T) {
	svc := NewService(&mockStore{}, &mockProducts{})

	require.NoError(t, svc.Remove(context.Background(), 1, "p1"))
}
