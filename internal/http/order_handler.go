package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type Orders interface {
	CreateOrder(ctx context.Context, userID primitive.ObjectID, input service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, requesterID primitive.ObjectID, isAdmin bool, orderID primitive.ObjectID) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.OrderSummary, error)
	UpdateStatus(ctx context.Context, orderID primitive.ObjectID, next domain.OrderStatus) error
}

type adminCheck interface {
	IsAdmin(ctx context.Context, userID primitive.ObjectID) (bool, error)
}

type OrderHandler struct {
	orders Orders
	users  adminCheck
}

func NewOrderHandler(orders Orders, users adminCheck) *OrderHandler {
	return &OrderHandler{orders: orders, users: users}
}

type createOrderDTO struct {
	Items           []domain.CartItem `json:"items"`
	ShippingAddress domain.Address    `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
	Shipping        float64           `json:"shipping"`
	Tax             float64           `json:"tax"`
	Discount        float64           `json:"discount"`
	Total           float64           `json:"total"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req createOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), userID, service.CreateOrderInput{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        req.Discount,
		Total:           req.Total,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"orderId":     order.ID.Hex(),
		"orderNumber": order.OrderNumber,
	})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a valid object id")
		return
	}

	isAdmin, err := h.users.IsAdmin(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), userID, isAdmin, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// ListMine returns the caller's order history, newest first.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	summaries, err := h.orders.ListUserOrders(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.OrderSummary{}
	}

	respondJSON(w, http.StatusOK, summaries)
}

type updateStatusDTO struct {
	Status domain.OrderStatus `json:"status"`
}

// UpdateStatus is mounted under the admin router.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a valid object id")
		return
	}

	var req updateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
