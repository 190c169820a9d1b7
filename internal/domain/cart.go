package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	UnitPrice float64            `bson:"unit_price" json:"unitPrice"`
	Image     string             `bson:"image" json:"image"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// MergeItems collapses duplicate product ids by summing quantities and
// drops entries with a quantity below 1. Order of first occurrence is kept.
func MergeItems(items []CartItem) []CartItem {
	merged := make([]CartItem, 0, len(items))
	index := make(map[primitive.ObjectID]int, len(items))

	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	return merged
}

// Subtotal is the client-facing display value; the order service recomputes
// it from catalog prices before anything is persisted.
func Subtotal(items []CartItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.UnitPrice * float64(item.Quantity)
	}
	return sum
}
