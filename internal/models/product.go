package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Price       float64            `json:"price" bson:"price"`
	Category    primitive.ObjectID `json:"category" bson:"category"`
	VendorID    primitive.ObjectID `json:"vendorId" bson:"vendor_id"`
	InStock     bool               `json:"inStock" bson:"in_stock"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// OwnedBy reports whether the product was created by the given user.
func (p Product) OwnedBy(userID primitive.ObjectID) bool {
	return p.VendorID == userID
}

// ProductPatch holds the mutable product fields; nil means "leave unchanged".
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *primitive.ObjectID
	InStock     *bool
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Category == nil && p.InStock == nil
}

// Apply copies the set fields onto product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.InStock != nil {
		product.InStock = *p.InStock
	}
}
