package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{
		collection: db.Collection("orders"),
	}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if order.OrderNumber == "" {
		number, err := r.nextOrderNumber(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number
	}

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// nextOrderNumber derives a number from the collection count plus a
// timestamp. Two inserts racing on the same count snapshot could collide;
// the unique index on order_number turns that into an insert error instead
// of a silent duplicate.
func (r *orderRepository) nextOrderNumber(ctx context.Context) (string, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return "", fmt.Errorf("failed to count orders: %w", err)
	}

	seq := (count + 1) % 10000
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), seq), nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	var order domain.Order

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

func (r *orderRepository) GetOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.OrderSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{
			"order_number": 1,
			"created_at":   1,
			"status":       1,
			"total":        1,
			"items":        1,
		})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	var summaries []domain.OrderSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	return summaries, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.OrderStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	return nil
}
