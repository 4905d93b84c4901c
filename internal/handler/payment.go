package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/shoporder/internal/domain/order"
	"github.com/xenking/shoporder/internal/domain/product"
)

type confirmPaymentRequest struct {
	OrderID int64 `json:"order_id"`
}

// ConfirmPayment handles the payment gateway's success signal. Repeated
// signals for the same order are accepted and ignored; a signal for a
// cancelled order is rejected. Requires the confirm_payment scope.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID <= 0 {
		writeError(w, r, http.StatusBadRequest, "order_id is required")
		return
	}

	if err := h.lifecycle.ConfirmPaid(r.Context(), req.OrderID); err != nil {
		var (
			illegal      *order.IllegalTransitionError
			insufficient *product.InsufficientStockError
		)
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "order not found")
		case errors.As(err, &illegal):
			writeError(w, r, http.StatusConflict, illegal.Error())
		case errors.As(err, &insufficient):
			writeError(w, r, http.StatusConflict, insufficient.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
