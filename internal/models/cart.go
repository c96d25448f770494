package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartItem struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"user_id"`
	ProductID primitive.ObjectID `json:"productId" bson:"product_id"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// CartLine is a cart item joined to its product. Product is nil when the
// referenced product no longer exists.
type CartLine struct {
	CartItem
	Product *Product `json:"product"`
}

type Cart struct {
	UserID primitive.ObjectID `json:"userId"`
	Items  []CartLine         `json:"items"`
	Count  int                `json:"count"`
	Total  float64            `json:"total"`
}
