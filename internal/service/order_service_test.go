package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type mockOrderRepo struct {
	m      sync.Mutex
	orders map[primitive.ObjectID]*domain.Order
	err    error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[primitive.ObjectID]*domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	order.ID = primitive.NewObjectID()
	order.OrderNumber = fmt.Sprintf("ORD-1700000000000-%04d", len(m.orders)+1)
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrderByID(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepo) GetOrdersByUser(_ context.Context, userID primitive.ObjectID) ([]domain.OrderSummary, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []domain.OrderSummary
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, domain.OrderSummary{OrderNumber: o.OrderNumber, Status: o.Status, Total: o.Total, Items: o.Items})
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

type mockProductRepo struct {
	products map[primitive.ObjectID]domain.Product
	err      error
}

func (m *mockProductRepo) GetProductsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[primitive.ObjectID]domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockProductRepo) ListProducts(context.Context) ([]domain.Product, error) { return nil, nil }
func (m *mockProductRepo) GetProduct(context.Context, primitive.ObjectID) (*domain.Product, error) {
	return nil, repository.ErrProductNotFound
}
func (m *mockProductRepo) CreateProduct(context.Context, *domain.Product) error { return nil }
func (m *mockProductRepo) UpdateProduct(context.Context, *domain.Product) error { return nil }
func (m *mockProductRepo) DeleteProduct(context.Context, primitive.ObjectID) error {
	return nil
}
func (m *mockProductRepo) ListCategories(context.Context) ([]domain.Category, error) {
	return nil, nil
}
func (m *mockProductRepo) CreateCategory(context.Context, *domain.Category) error { return nil }
func (m *mockProductRepo) UpdateCategory(context.Context, *domain.Category) error { return nil }
func (m *mockProductRepo) DeleteCategory(context.Context, primitive.ObjectID) error {
	return nil
}

type mockCartClearer struct {
	m       sync.Mutex
	cleared []primitive.ObjectID
	err     error
}

func (m *mockCartClearer) ClearCart(_ context.Context, userID primitive.ObjectID) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

type mockPublisher struct {
	m         sync.Mutex
	published []*domain.Order
	err       error
}

func (m *mockPublisher) OrderCreated(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, order)
	return nil
}

func orderFixtures(t *testing.T) (*mockUserRepo, *domain.User, *mockProductRepo, domain.Product) {
	t.Helper()

	user := &domain.User{
		ID:    primitive.NewObjectID(),
		Name:  "Jo Tester",
		Email: "jo@example.com",
	}
	users := newMockUserRepo()
	users.users[user.ID] = user

	product := domain.Product{
		ID:    primitive.NewObjectID(),
		Name:  "Walnut Desk",
		Price: 100,
		Stock: 10,
	}
	products := &mockProductRepo{products: map[primitive.ObjectID]domain.Product{product.ID: product}}

	return users, user, products, product
}

func TestCreateOrder_Success(t *testing.T) {
	users, user, products, product := orderFixtures(t)
	orders := newMockOrderRepo()
	carts := &mockCartClearer{}
	pub := &mockPublisher{}

	sut := NewOrderService(orders, users, products, carts, pub)
	order, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, Name: "stale name", UnitPrice: 1, Quantity: 1}},
		Total: 100,
	})
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-\d+-\d{4}$`, order.OrderNumber)
	assert.Equal(t, user.Email, order.CustomerEmail)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.Payment.Status)

	// Snapshot uses catalog name and price, not the client-supplied ones.
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Walnut Desk", order.Items[0].Name)
	assert.InDelta(t, 100.0, order.Items[0].UnitPrice, 0.0001)
	assert.InDelta(t, 100.0, order.Total, 0.0001)

	assert.Equal(t, []primitive.ObjectID{user.ID}, carts.cleared)
	require.Len(t, pub.published, 1)
	assert.Equal(t, order.OrderNumber, pub.published[0].OrderNumber)
}

func TestCreateOrder_DuplicateItemsMerged(t *testing.T) {
	users, user, products, product := orderFixtures(t)
	orders := newMockOrderRepo()

	sut := NewOrderService(orders, users, products, &mockCartClearer{}, &mockPublisher{})
	order, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		},
		Total: 300,
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	users, user, products, _ := orderFixtures(t)

	sut := NewOrderService(newMockOrderRepo(), users, products, &mockCartClearer{}, &mockPublisher{})
	_, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{Total: 0})
	require.ErrorIs(t, err, ErrEmptyOrder)

	// Only sub-1 quantities is still an empty order.
	_, err = sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	users, user, products, _ := orderFixtures(t)

	sut := NewOrderService(newMockOrderRepo(), users, products, &mockCartClearer{}, &mockPublisher{})
	_, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 1}},
		Total: 100,
	})
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCreateOrder_TotalMismatch(t *testing.T) {
	users, user, products, product := orderFixtures(t)
	orders := newMockOrderRepo()

	sut := NewOrderService(orders, users, products, &mockCartClearer{}, &mockPublisher{})
	_, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, UnitPrice: 1, Quantity: 1}},
		Total: 1, // catalog says 100
	})
	require.ErrorIs(t, err, ErrTotalMismatch)
	assert.Empty(t, orders.orders, "rejected order must not be persisted")
}

func TestCreateOrder_TotalWithinTolerance(t *testing.T) {
	users, user, products, product := orderFixtures(t)

	sut := NewOrderService(newMockOrderRepo(), users, products, &mockCartClearer{}, &mockPublisher{})
	_, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:    []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		Shipping: 9.99,
		Total:    109.985,
	})
	require.NoError(t, err)
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	users, _, products, product := orderFixtures(t)

	sut := NewOrderService(newMockOrderRepo(), users, products, &mockCartClearer{}, &mockPublisher{})
	_, err := sut.CreateOrder(context.Background(), primitive.NewObjectID(), CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		Total: 100,
	})
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestCreateOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	users, user, products, product := orderFixtures(t)

	sut := NewOrderService(newMockOrderRepo(), users, products, &mockCartClearer{}, &mockPublisher{err: fmt.Errorf("broker down")})
	order, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		Total: 100,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
}

func TestGetOrder_Ownership(t *testing.T) {
	users, user, products, product := orderFixtures(t)
	orders := newMockOrderRepo()

	sut := NewOrderService(orders, users, products, &mockCartClearer{}, &mockPublisher{})
	order, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		Total: 100,
	})
	require.NoError(t, err)

	got, err := sut.GetOrder(context.Background(), user.ID, false, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = sut.GetOrder(context.Background(), primitive.NewObjectID(), false, order.ID)
	require.ErrorIs(t, err, ErrNotOrderOwner)

	// Admins may read any order.
	_, err = sut.GetOrder(context.Background(), primitive.NewObjectID(), true, order.ID)
	require.NoError(t, err)

	_, err = sut.GetOrder(context.Background(), user.ID, false, primitive.NewObjectID())
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateStatus(t *testing.T) {
	users, user, products, product := orderFixtures(t)
	orders := newMockOrderRepo()

	sut := NewOrderService(orders, users, products, &mockCartClearer{}, &mockPublisher{})
	order, err := sut.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
		Total: 100,
	})
	require.NoError(t, err)

	require.NoError(t, sut.UpdateStatus(context.Background(), order.ID, domain.OrderStatusConfirmed))
	assert.Equal(t, domain.OrderStatusConfirmed, orders.orders[order.ID].Status)

	// Same status again is a no-op.
	require.NoError(t, sut.UpdateStatus(context.Background(), order.ID, domain.OrderStatusConfirmed))

	err = sut.UpdateStatus(context.Background(), order.ID, domain.OrderStatusDelivered)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.OrderStatusConfirmed, orders.orders[order.ID].Status)
}
