package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/shoporder/internal/domain/cart"
	"github.com/xenking/shoporder/internal/domain/product"
)

type cartItemResponse struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	ProductPrice    float64 `json:"product_price"`
	ProductQuantity int     `json:"product_quantity"`
}

func toCartItemResponse(it cart.Item) cartItemResponse {
	return cartItemResponse{
		ProductID:       it.ProductID,
		ProductName:     it.Title,
		ProductPrice:    it.UnitPrice.InexactFloat64(),
		ProductQuantity: it.Quantity,
	}
}

// GetCart returns the authenticated user's cart contents.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())

	items, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := make([]cartItemResponse, len(items))
	for i, it := range items {
		resp[i] = toCartItemResponse(it)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type addCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// AddCartItem puts a product into the user's cart with the current catalog
// price snapshotted. An absent body defaults the quantity to 1.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	productID := r.PathValue("id")

	req := addCartItemRequest{Quantity: 1}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	item, err := h.carts.Add(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, product.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "product not found")
		case errors.Is(err, cart.ErrDuplicateItem):
			writeError(w, r, http.StatusBadRequest, "this product is already in your cart")
		case errors.Is(err, cart.ErrInvalidQuantity):
			writeError(w, r, http.StatusBadRequest, "quantity must be greater than 0")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, toCartItemResponse(*item))
}

// RemoveCartItem deletes a product from the user's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	productID := r.PathValue("id")

	if err := h.carts.Remove(r.Context(), userID, productID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, r, http.StatusNotFound, "cart item not found")
			return
		}
		internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
