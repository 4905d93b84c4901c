package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/shoporder/internal/domain/address"
	"github.com/xenking/shoporder/internal/domain/auth"
	"github.com/xenking/shoporder/internal/domain/cart"
	"github.com/xenking/shoporder/internal/domain/order"
	"github.com/xenking/shoporder/internal/domain/product"
)

// --- Mock implementations ---

type stubProducts struct {
	products []product.Product
	byID     map[string]*product.Product
}

func (s *stubProducts) List(_ context.Context, _ product.Filter) ([]product.Product, error) {
	return s.products, nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, product.ErrNotFound
}

func (s *stubProducts) Categories(_ context.Context) ([]string, error) {
	return []string{"Electronics", "Kitchen"}, nil
}

type stubInventory struct {
	decErr error
	incErr error

	lastID  string
	lastQty int
}

func (s *stubInventory) Decrement(_ context.Context, id string, qty int) error {
	s.lastID, s.lastQty = id, -qty
	return s.decErr
}

func (s *stubInventory) Increment(_ context.Context, id string, qty int) error {
	s.lastID, s.lastQty = id, qty
	return s.incErr
}

type stubCartStore struct {
	items  []cart.Item
	addErr error
	rmErr  error
}

func (s *stubCartStore) Items(_ context.Context, _ int64) ([]cart.Item, error) {
	return s.items, nil
}

func (s *stubCartStore) Add(_ context.Context, _ int64, item cart.Item) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.items = append(s.items, item)
	return nil
}

func (s *stubCartStore) Remove(_ context.Context, _ int64, _ string) error { return s.rmErr }

type stubAddresses struct{}

func (s *stubAddresses) Resolve(_ context.Context, _, _ string) (int64, error) { return 10, nil }

func (s *stubAddresses) GetByID(_ context.Context, id int64) (*address.Address, error) {
	return &address.Address{ID: id, Text: "1 Main St", Postcode: "AB1 2CD"}, nil
}

type stubOrders struct {
	order *order.Order
	owner int64

	confirmResult order.TransitionResult
	confirmErr    error
	cancelResult  order.TransitionResult
}

func (s *stubOrders) CreatePending(_ context.Context, o *order.Order) error {
	o.ID = 101
	o.PlacedAt = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	o.Address = "1 Main St"
	o.Postcode = "AB1 2CD"
	s.order = o
	return nil
}

func (s *stubOrders) Get(_ context.Context, id int64) (*order.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, order.ErrNotFound
	}
	return s.order, nil
}

func (s *stubOrders) ListByUser(_ context.Context, _ int64) ([]order.Summary, error) {
	if s.order == nil {
		return nil, nil
	}
	return []order.Summary{{
		ID:        s.order.ID,
		Status:    s.order.Status,
		TotalCost: s.order.TotalCost,
		PlacedAt:  s.order.PlacedAt,
	}}, nil
}

func (s *stubOrders) OwnerOf(_ context.Context, id int64) (int64, error) {
	if s.order == nil || s.order.ID != id {
		return 0, order.ErrNotFound
	}
	return s.owner, nil
}

func (s *stubOrders) ConfirmPending(_ context.Context, _ int64) (order.TransitionResult, error) {
	return s.confirmResult, s.confirmErr
}

func (s *stubOrders) CancelPending(_ context.Context, _ int64) (order.TransitionResult, error) {
	return s.cancelResult, nil
}

type stubAPIKeys struct {
	key *auth.APIKeyInfo
}

func (s *stubAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if s.key != nil && s.key.KeyHash == hash {
		return s.key, nil
	}
	return nil, auth.ErrKeyNotFound
}

// --- Test fixture ---

const (
	testPepper = "test-pepper"
	gatewayKey = "apitest_gateway_key"
)

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	mux *http.ServeMux

	products  *stubProducts
	inventory *stubInventory
	carts     *stubCartStore
	orders    *stubOrders
	apikeys   *stubAPIKeys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mouse := &product.Product{
		ID:         "p1",
		Title:      "Wireless Mouse",
		Price:      decimal.RequireFromString("10.00"),
		Category:   "Electronics",
		StockCount: 5,
	}

	f := &fixture{
		products:  &stubProducts{products: []product.Product{*mouse}, byID: map[string]*product.Product{"p1": mouse}},
		inventory: &stubInventory{},
		carts:     &stubCartStore{},
		orders:    &stubOrders{},
		apikeys: &stubAPIKeys{key: &auth.APIKeyInfo{
			ID:      "gateway",
			KeyHash: hashKey(gatewayKey),
			Name:    "Test gateway",
			Scopes:  []string{auth.ScopeConfirmPayment, auth.ScopeManageStock},
		}},
	}

	addresses := &stubAddresses{}
	cartSvc := cart.NewService(f.carts, f.products)
	ledger := order.NewLedger(f.carts, f.orders)
	lifecycle := order.NewLifecycle(f.orders, zap.NewNop())
	security := NewSecurity(f.apikeys, []byte(testPepper))

	h := NewHandler(f.products, f.inventory, cartSvc, addresses, ledger, lifecycle, f.orders, security)

	f.mux = http.NewServeMux()
	h.Routes(f.mux)
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func asUser(id string) map[string]string { return map[string]string{"X-User-ID": id} }

func withKey(key string) map[string]string { return map[string]string{"api_key": key} }

// --- Catalog ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"p1"`)
	assert.Contains(t, rec.Body.String(), `"price":10`)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/products/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "product not found")
}

// --- Cart ---

func TestGetCart_RequiresUser(t *testing.T) {
	f := newFixture(t)

	for _, h := range []map[string]string{nil, asUser("abc"), asUser("0"), asUser("-3")} {
		rec := f.do(http.MethodGet, "/api/cart", "", h)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAddCartItem_DefaultQuantity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items/p1", "", asUser("1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"product_quantity":1`)
	assert.Contains(t, rec.Body.String(), `"product_price":10`)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items/nope", "", asUser("1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCartItem_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.carts.addErr = cart.ErrDuplicateItem

	rec := f.do(http.MethodPost, "/api/cart/items/p1", "", asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in your cart")
}

func TestAddCartItem_InvalidQuantity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items/p1", `{"quantity":0}`, asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantity must be greater than 0")
}

func TestRemoveCartItem_NotFound(t *testing.T) {
	f := newFixture(t)
	f.carts.rmErr = cart.ErrItemNotFound

	rec := f.do(http.MethodDelete, "/api/cart/items/p1", "", asUser("1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Checkout and orders ---

func TestCreatePendingOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/checkout/orders",
		`{"address":"1 Main St","postcode":"AB1 2CD"}`, asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "your cart is empty")
}

func TestCreatePendingOrder_MissingAddress(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/checkout/orders", `{"address":"1 Main St"}`, asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid address and postcode")
}

func TestCreatePendingOrder_OK(t *testing.T) {
	f := newFixture(t)
	f.carts.items = []cart.Item{
		{ProductID: "p1", Title: "Wireless Mouse", Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
	}

	rec := f.do(http.MethodPost, "/api/checkout/orders",
		`{"address":"1 Main St","postcode":"AB1 2CD"}`, asUser("1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_id":101`)
	assert.Contains(t, rec.Body.String(), `"order_status":"pending"`)
	assert.Contains(t, rec.Body.String(), `"total_cost":30`)
	assert.Contains(t, rec.Body.String(), `"postcode":"AB1 2CD"`)
}

func TestGetOrder_OtherUser(t *testing.T) {
	f := newFixture(t)
	f.orders.order = &order.Order{ID: 101, UserID: 2, Status: order.StatusPending}
	f.orders.owner = 2

	rec := f.do(http.MethodGet, "/api/orders/101", "", asUser("1"))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "another user's order")
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/orders/999", "", asUser("1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_BadID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/orders/abc", "", asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid order id")
}

func TestCancelOrder_OK(t *testing.T) {
	f := newFixture(t)
	f.orders.order = &order.Order{ID: 101, UserID: 1, Status: order.StatusPending}
	f.orders.owner = 1
	f.orders.cancelResult = order.TransitionResult{Applied: true, Status: order.StatusCancelled}

	rec := f.do(http.MethodDelete, "/api/orders/101", "", asUser("1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	f.orders.order = &order.Order{ID: 101, UserID: 1, Status: order.StatusCancelled}
	f.orders.owner = 1
	f.orders.cancelResult = order.TransitionResult{Applied: false, Status: order.StatusCancelled}

	rec := f.do(http.MethodDelete, "/api/orders/101", "", asUser("1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCancelOrder_Processing(t *testing.T) {
	f := newFixture(t)
	f.orders.order = &order.Order{ID: 101, UserID: 1, Status: order.StatusProcessing}
	f.orders.owner = 1
	f.orders.cancelResult = order.TransitionResult{Applied: false, Status: order.StatusProcessing}

	rec := f.do(http.MethodDelete, "/api/orders/101", "", asUser("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "status is 'processing'")
}

// --- Payment confirmation ---

func TestConfirmPayment_RequiresKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, withKey("wrong-key"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmPayment_MissingScope(t *testing.T) {
	f := newFixture(t)
	f.apikeys.key.Scopes = []string{auth.ScopeManageStock}

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, withKey(gatewayKey))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.ScopeConfirmPayment)
}

func TestConfirmPayment_OK(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmResult = order.TransitionResult{Applied: true, Status: order.StatusProcessing}

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, withKey(gatewayKey))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConfirmPayment_Repeated(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmResult = order.TransitionResult{Applied: false, Status: order.StatusProcessing}

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, withKey(gatewayKey))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConfirmPayment_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmResult = order.TransitionResult{Applied: false, Status: order.StatusCancelled}

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":101}`, withKey(gatewayKey))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "illegal transition")
}

func TestConfirmPayment_NotFound(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmErr = order.ErrNotFound

	rec := f.do(http.MethodPost, "/api/payments/confirm", `{"order_id":999}`, withKey(gatewayKey))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Stock administration ---

func TestAdjustStock_Restock(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/products/p1/stock", `{"delta":25}`, withKey(gatewayKey))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", f.inventory.lastID)
	assert.Equal(t, 25, f.inventory.lastQty)
}

func TestAdjustStock_Insufficient(t *testing.T) {
	f := newFixture(t)
	f.inventory.decErr = &product.InsufficientStockError{ProductID: "p1", Requested: 10}

	rec := f.do(http.MethodPost, "/api/products/p1/stock", `{"delta":-10}`, withKey(gatewayKey))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
}

func TestAdjustStock_ZeroDelta(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/products/p1/stock", `{"delta":0}`, withKey(gatewayKey))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
