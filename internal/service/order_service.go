package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Client-computed totals may carry float rounding noise; anything beyond
// this is treated as a pricing disagreement and rejected.
const totalTolerance = 0.01

var (
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrUnknownProduct    = errors.New("order references an unknown product")
	ErrTotalMismatch     = errors.New("order total does not match server-side pricing")
	ErrNotOrderOwner     = errors.New("order belongs to another user")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// EventPublisher emits order lifecycle events downstream. Publishing is
// best effort; a failed publish never fails the order.
type EventPublisher interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
}

type cartClearer interface {
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
}

type CreateOrderInput struct {
	Items           []domain.CartItem
	ShippingAddress domain.Address
	PaymentMethod   string
	Shipping        float64
	Tax             float64
	Discount        float64
	Total           float64
}

type OrderService struct {
	orders    repository.OrderRepository
	users     repository.UserRepository
	products  repository.ProductRepository
	carts     cartClearer
	publisher EventPublisher
}

func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	carts cartClearer,
	publisher EventPublisher,
) *OrderService {
	return &OrderService{
		orders:    orders,
		users:     users,
		products:  products,
		carts:     carts,
		publisher: publisher,
	}
}

// CreateOrder snapshots the submitted items against live catalog prices and
// persists the order. The catalog is the pricing source of truth: names and
// unit prices come from the product records, not from the request, and the
// client's total must agree with the recomputed one within totalTolerance.
func (s *OrderService) CreateOrder(ctx context.Context, userID primitive.ObjectID, input CreateOrderInput) (*domain.Order, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	items := domain.MergeItems(input.Items)
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]primitive.ObjectID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	catalog, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var subtotal float64
	snapshot := make([]domain.OrderItem, len(items))
	for i, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID.Hex())
		}

		snapshot[i] = domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
		}
		subtotal += product.Price * float64(item.Quantity)
	}

	computed := subtotal + input.Shipping + input.Tax - input.Discount
	if math.Abs(computed-input.Total) > totalTolerance {
		log.Warn().
			Stringer("user_id", userID).
			Float64("client_total", input.Total).
			Float64("server_total", computed).
			Msg("rejecting order with mismatched total")
		return nil, ErrTotalMismatch
	}

	order := &domain.Order{
		UserID:          user.ID,
		CustomerEmail:   user.Email,
		Items:           snapshot,
		Subtotal:        subtotal,
		Shipping:        input.Shipping,
		Tax:             input.Tax,
		Discount:        input.Discount,
		Total:           computed,
		ShippingAddress: input.ShippingAddress,
		Payment: domain.PaymentInfo{
			Method: input.PaymentMethod,
			Status: domain.PaymentStatusPending,
		},
		Status: domain.OrderStatusPending,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("order persistence failed")
		return nil, err
	}

	// Checkout complete: empty the server-side cart.
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("cart clear after checkout failed")
	}

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.OrderCreated(pubCtx, order); err != nil {
			log.Warn().Err(err).Str("order_number", order.OrderNumber).Msg("order event publish failed")
		}
	}

	log.Info().
		Str("order_number", order.OrderNumber).
		Stringer("user_id", userID).
		Float64("total", order.Total).
		Msg("order created")

	return order, nil
}

// GetOrder enforces ownership: only the owner or an admin may read an order.
func (s *OrderService) GetOrder(ctx context.Context, requesterID primitive.ObjectID, isAdmin bool, orderID primitive.ObjectID) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != requesterID && !isAdmin {
		return nil, ErrNotOrderOwner
	}

	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.OrderSummary, error) {
	return s.orders.GetOrdersByUser(ctx, userID)
}

// UpdateStatus applies one forward step of the order state machine.
// Setting the current status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID primitive.ObjectID, next domain.OrderStatus) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == next {
		return nil
	}

	if !order.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, next); err != nil {
		return err
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", order.Status).
		Stringer("new_status", next).
		Msg("order status updated")

	return nil
}
