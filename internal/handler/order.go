package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shoporder/internal/domain/address"
	"github.com/xenking/shoporder/internal/domain/order"
)

type orderItemResponse struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	ProductPrice    float64 `json:"product_price"`
	ProductQuantity int     `json:"product_quantity"`
}

type orderResponse struct {
	OrderID         int64               `json:"order_id"`
	UserID          int64               `json:"user_id"`
	OrderStatus     string              `json:"order_status"`
	OrderPlacedTime time.Time           `json:"order_placed_time"`
	TotalCost       float64             `json:"total_cost"`
	Address         string              `json:"address"`
	Postcode        string              `json:"postcode"`
	OrderItems      []orderItemResponse `json:"order_items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:       it.ProductID,
			ProductName:     it.Title,
			ProductPrice:    it.UnitPrice.InexactFloat64(),
			ProductQuantity: it.Quantity,
		}
	}
	return orderResponse{
		OrderID:         o.ID,
		UserID:          o.UserID,
		OrderStatus:     string(o.Status),
		OrderPlacedTime: o.PlacedAt,
		TotalCost:       o.TotalCost.InexactFloat64(),
		Address:         o.Address,
		Postcode:        o.Postcode,
		OrderItems:      items,
	}
}

type orderSummaryResponse struct {
	OrderID         int64     `json:"order_id"`
	OrderStatus     string    `json:"order_status"`
	OrderPlacedTime time.Time `json:"order_placed_time"`
	TotalCost       float64   `json:"total_cost"`
}

type createOrderRequest struct {
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
}

// CreatePendingOrder resolves the delivery address and snapshots the user's
// cart into a new pending order. The cart is left untouched and no stock
// moves until payment is confirmed.
func (h *Handler) CreatePendingOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Address == "" || req.Postcode == "" {
		writeError(w, r, http.StatusBadRequest, "please provide a valid address and postcode")
		return
	}

	addressID, err := h.addresses.Resolve(r.Context(), req.Address, req.Postcode)
	if err != nil {
		internalError(w, r, err)
		return
	}

	o, err := h.ledger.CreatePendingOrder(r.Context(), userID, addressID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			writeError(w, r, http.StatusBadRequest, "your cart is empty")
		case errors.Is(err, address.ErrNotFound):
			writeError(w, r, http.StatusBadRequest, "address not found")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns the authenticated user's order summaries, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())

	summaries, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := make([]orderSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = orderSummaryResponse{
			OrderID:         s.ID,
			OrderStatus:     string(s.Status),
			OrderPlacedTime: s.PlacedAt,
			TotalCost:       s.TotalCost.InexactFloat64(),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetOrder returns the full order projection. Only the owner may view it.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.authorizeOrder(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// CancelOrder cancels a pending order. Cancelling an already-cancelled order
// succeeds; any other state is rejected naming the current status.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.authorizeOrder(w, r)
	if !ok {
		return
	}

	if err := h.lifecycle.Cancel(r.Context(), orderID); err != nil {
		var illegal *order.IllegalTransitionError
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "order not found")
		case errors.As(err, &illegal):
			writeError(w, r, http.StatusBadRequest,
				"only pending orders can be cancelled; this order's status is '"+string(illegal.Current)+"'")
		default:
			internalError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorizeOrder parses the order id path value and confirms the
// authenticated user owns the order. Missing orders are 404; another user's
// orders are 403.
func (h *Handler) authorizeOrder(w http.ResponseWriter, r *http.Request) (int64, bool) {
	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return 0, false
	}

	userID, _ := UserFromContext(r.Context())

	owner, err := h.orders.OwnerOf(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return 0, false
		}
		internalError(w, r, err)
		return 0, false
	}
	if owner != userID {
		writeError(w, r, http.StatusForbidden, "you cannot view another user's order")
		return 0, false
	}

	return orderID, true
}
