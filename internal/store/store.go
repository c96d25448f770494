// Package store declares the persistence ports used by the services.
// mongostore is the production implementation; memstore backs tests and
// local runs.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")

	// ErrStatusChanged means a conditional order update found the order in a
	// different status than expected.
	ErrStatusChanged = errors.New("order status changed")
)

// DuplicateError names the unique field that was violated.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return "duplicate " + e.Field }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

type Users interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error
}

type Categories interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Products interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	// Search matches name or description case-insensitively.
	Search(ctx context.Context, query string) ([]models.Product, error)
	// Update sets only the fields present in patch and returns the stored
	// product.
	Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch, at time.Time) (models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteAll(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error)
}

type Cart interface {
	Insert(ctx context.Context, item *models.CartItem) error
	FindItem(ctx context.Context, userID, productID primitive.ObjectID) (models.CartItem, error)
	AddQuantity(ctx context.Context, id primitive.ObjectID, delta int, at time.Time) (models.CartItem, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error)
	// DeleteItem removes the item only when it belongs to userID.
	DeleteItem(ctx context.Context, userID, itemID primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type Orders interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindByNumber(ctx context.Context, number string) (models.Order, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, notes *string, at time.Time) error
}

type Store interface {
	Users() Users
	Categories() Categories
	Products() Products
	Cart() Cart
	Orders() Orders

	// WithTransaction runs fn atomically. Repositories must be called with
	// the context passed to fn.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
