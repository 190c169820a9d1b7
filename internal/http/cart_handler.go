package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

// Carts is the cart service surface the handler consumes.
type Carts interface {
	GetCart(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error)
	ReplaceItems(ctx context.Context, userID primitive.ObjectID, items []domain.CartItem) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
}

type CartHandler struct {
	carts Carts
}

func NewCartHandler(carts Carts) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartResponse struct {
	Success bool              `json:"success"`
	Reset   bool              `json:"reset,omitempty"`
	Items   []domain.CartItem `json:"items"`
}

// replaceCartDTO uses a pointer slice so `items: null` and a missing field
// are distinguishable from an empty list.
type replaceCartDTO struct {
	Items *[]domain.CartItem `json:"items"`
}

// GetCart returns the caller's cart. Anonymous callers get an empty item
// list rather than an error so the client-side store can hydrate without
// caring about session state.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": []domain.CartItem{}})
		return
	}

	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"items": cart.Items})
}

// ReplaceCart upserts the caller's cart to exactly the submitted item list.
func (h *CartHandler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req replaceCartDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Items == nil {
		respondError(w, http.StatusBadRequest, "invalid_items", "items must be an array")
		return
	}

	cart, err := h.carts.ReplaceItems(r.Context(), userID, *req.Items)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Success: true, Items: cart.Items})
}

// ClearCart empties the cart and tells the client to reset its local store.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.ClearCart(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Success: true, Reset: true, Items: []domain.CartItem{}})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a valid object id")
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Success: true, Items: cart.Items})
}
