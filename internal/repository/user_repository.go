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

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrAddressNotFound = errors.New("address not found")
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		collection: db.Collection("users"),
	}
}

func (r *userRepository) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Addresses == nil {
		user.Addresses = []domain.Address{}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *userRepository) AddAddress(ctx context.Context, userID primitive.ObjectID, addr domain.Address) (*domain.Address, error) {
	addr.ID = primitive.NewObjectID()

	filter := bson.M{"_id": userID}
	update := bson.M{
		"$push": bson.M{"addresses": addr},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to add address: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, ErrUserNotFound
	}

	if addr.IsDefault {
		if err := r.SetDefaultAddress(ctx, userID, addr.ID); err != nil {
			return nil, err
		}
	}

	return &addr, nil
}

func (r *userRepository) UpdateAddress(ctx context.Context, userID primitive.ObjectID, addr domain.Address) error {
	filter := bson.M{
		"_id":          userID,
		"addresses.id": addr.ID,
	}

	// The default flag is managed only through SetDefaultAddress.
	update := bson.M{
		"$set": bson.M{
			"addresses.$[elem].full_name":   addr.FullName,
			"addresses.$[elem].line1":       addr.Line1,
			"addresses.$[elem].line2":       addr.Line2,
			"addresses.$[elem].city":        addr.City,
			"addresses.$[elem].state":       addr.State,
			"addresses.$[elem].postal_code": addr.PostalCode,
			"addresses.$[elem].country":     addr.Country,
			"addresses.$[elem].phone":       addr.Phone,
			"updated_at":                    time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.id": addr.ID},
		},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrAddressNotFound
	}

	return nil
}

func (r *userRepository) DeleteAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"addresses": bson.M{"id": addressID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if result.ModifiedCount == 0 {
		return ErrAddressNotFound
	}

	return nil
}

// SetDefaultAddress flips the default flag in a single pipeline update, so
// there is no window where zero or two addresses are marked default.
func (r *userRepository) SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	filter := bson.M{
		"_id":          userID,
		"addresses.id": addressID,
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"addresses": bson.M{
				"$map": bson.M{
					"input": "$addresses",
					"as":    "addr",
					"in": bson.M{
						"$mergeObjects": bson.A{
							"$$addr",
							bson.M{"is_default": bson.M{"$eq": bson.A{"$$addr.id", addressID}}},
						},
					},
				},
			},
			"updated_at": "$$NOW",
		}}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrAddressNotFound
	}

	return nil
}

func (r *userRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
