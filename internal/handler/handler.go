// Package handler exposes the service's HTTP API on a plain http.ServeMux.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shoporder/internal/domain/address"
	"github.com/xenking/shoporder/internal/domain/auth"
	"github.com/xenking/shoporder/internal/domain/cart"
	"github.com/xenking/shoporder/internal/domain/order"
	"github.com/xenking/shoporder/internal/domain/product"
)

// Handler implements the HTTP API, delegating business logic to the domain
// services and repositories.
type Handler struct {
	products  product.Repository
	inventory product.Inventory
	carts     *cart.Service
	addresses address.Registry
	ledger    *order.Ledger
	lifecycle *order.Lifecycle
	orders    order.Repository
	security  *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	inventory product.Inventory,
	carts *cart.Service,
	addresses address.Registry,
	ledger *order.Ledger,
	lifecycle *order.Lifecycle,
	orders order.Repository,
	security *Security,
) *Handler {
	return &Handler{
		products:  products,
		inventory: inventory,
		carts:     carts,
		addresses: addresses,
		ledger:    ledger,
		lifecycle: lifecycle,
		orders:    orders,
		security:  security,
	}
}

// Routes registers all API routes on mux under /api.
func (h *Handler) Routes(mux *http.ServeMux) {
	// Catalog: public read-only lookups.
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/categories", h.ListCategories)

	// Cart and orders: require the trusted user identity.
	mux.Handle("GET /api/cart", h.security.RequireUser(http.HandlerFunc(h.GetCart)))
	mux.Handle("POST /api/cart/items/{id}", h.security.RequireUser(http.HandlerFunc(h.AddCartItem)))
	mux.Handle("DELETE /api/cart/items/{id}", h.security.RequireUser(http.HandlerFunc(h.RemoveCartItem)))
	mux.Handle("POST /api/checkout/orders", h.security.RequireUser(http.HandlerFunc(h.CreatePendingOrder)))
	mux.Handle("GET /api/orders", h.security.RequireUser(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", h.security.RequireUser(http.HandlerFunc(h.GetOrder)))
	mux.Handle("DELETE /api/orders/{id}", h.security.RequireUser(http.HandlerFunc(h.CancelOrder)))

	// Machine collaborators: API key with the right scope.
	mux.Handle("POST /api/payments/confirm",
		h.security.RequireAPIKey(auth.ScopeConfirmPayment, http.HandlerFunc(h.ConfirmPayment)))
	mux.Handle("POST /api/products/{id}/stock",
		h.security.RequireAPIKey(auth.ScopeManageStock, http.HandlerFunc(h.AdjustStock)))
}

// errorResponse is the uniform JSON error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

// internalError logs the cause and returns an opaque failure to the client.
// Persistence details are never echoed to end users.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
