package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

// Repository interfaces are defined here, on the consumer side; the MongoDB
// implementations live next to them in this package.

type CartRepository interface {
	// EnsureCart returns the user's cart, creating an empty one if absent.
	EnsureCart(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error)
	ReplaceItems(ctx context.Context, userID primitive.ObjectID, items []domain.CartItem) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*domain.Cart, error)
	// ClearCart overwrites the item list to empty; cart documents are never
	// hard-deleted.
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	GetOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.OrderSummary, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.OrderStatus) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	AddAddress(ctx context.Context, userID primitive.ObjectID, addr domain.Address) (*domain.Address, error)
	UpdateAddress(ctx context.Context, userID primitive.ObjectID, addr domain.Address) error
	DeleteAddress(ctx context.Context, userID, addressID primitive.ObjectID) error
	SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) error
}

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error
}
