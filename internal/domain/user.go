package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	IsAdmin      bool               `bson:"is_admin" json:"isAdmin"`
	Addresses    []Address          `bson:"addresses" json:"addresses"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Address is embedded in the user document. The default flag is advisory,
// it only pre-selects an address at checkout.
type Address struct {
	ID         primitive.ObjectID `bson:"id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"fullName"`
	Line1      string             `bson:"line1" json:"line1"`
	Line2      string             `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string             `bson:"city" json:"city"`
	State      string             `bson:"state" json:"state"`
	PostalCode string             `bson:"postal_code" json:"postalCode"`
	Country    string             `bson:"country" json:"country"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	IsDefault  bool               `bson:"is_default" json:"isDefault"`
}
