package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/shoporder/internal/domain/product"
)

type productResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	StockCount int     `json:"stock_count"`
	Thumb      string  `json:"thumb"`
	HiRes      string  `json:"hi_res"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Title:      p.Title,
		Price:      p.Price.InexactFloat64(),
		Category:   p.Category,
		StockCount: p.StockCount,
		Thumb:      p.Image.Thumb,
		HiRes:      p.Image.HiRes,
	}
}

// ListProducts returns catalog products, optionally filtered by the category
// or search query parameters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f := product.Filter{
		Category:   r.URL.Query().Get("category"),
		SearchTerm: r.URL.Query().Get("search"),
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toProductResponse(*p))
}

// ListCategories returns the distinct product categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.Categories(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categories)
}

type stockAdjustRequest struct {
	Delta int `json:"delta"`
}

// AdjustStock applies a signed stock delta to a product: positive values
// restock, negative values write stock off. Requires the manage_stock scope.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req stockAdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		writeError(w, r, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	var err error
	if req.Delta > 0 {
		err = h.inventory.Increment(r.Context(), id, req.Delta)
	} else {
		err = h.inventory.Decrement(r.Context(), id, -req.Delta)
	}
	if err != nil {
		var insufficient *product.InsufficientStockError
		switch {
		case errors.Is(err, product.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "product not found")
		case errors.As(err, &insufficient):
			writeError(w, r, http.StatusConflict, insufficient.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
