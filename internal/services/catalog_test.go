package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/models"
)

func TestCreateProductOwnedByCaller(t *testing.T) {
	f := setup(t)
	vendor := f.user(t, "vendor", models.RoleVendor)
	books := f.category(t)

	p := f.product(t, vendor, books, "Go in Action", 10)
	assert.Equal(t, vendor.UserID, p.VendorID)
	assert.True(t, p.InStock)

	customer := f.user(t, "customer", models.RoleCustomer)
	_, err := f.catalog.CreateProduct(context.Background(), customer, ProductInput{Name: "x", Price: 1, Category: books.ID.Hex()})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestCreateProductValidation(t *testing.T) {
	f := setup(t)
	vendor := f.user(t, "vendor", models.RoleVendor)
	books := f.category(t)
	ctx := context.Background()

	_, err := f.catalog.CreateProduct(ctx, vendor, ProductInput{Name: "x", Price: 0, Category: books.ID.Hex()})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.catalog.CreateProduct(ctx, vendor, ProductInput{Name: "x", Price: 1, Category: primitive.NewObjectID().Hex()})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = f.catalog.CreateProduct(ctx, vendor, ProductInput{Name: "x", Price: 1, Category: "nope"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestAuthorizeProduct(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.user(t, "owner", models.RoleVendor)
	rival := f.user(t, "rival", models.RoleVendor)
	admin := f.user(t, "admin", models.RoleAdmin)
	customer := f.user(t, "customer", models.RoleCustomer)
	p := f.product(t, owner, f.category(t), "Lamp", 20)

	_, err := f.catalog.AuthorizeProduct(ctx, owner, p.ID.Hex())
	assert.NoError(t, err)
	_, err = f.catalog.AuthorizeProduct(ctx, admin, p.ID.Hex())
	assert.NoError(t, err)

	_, err = f.catalog.AuthorizeProduct(ctx, rival, p.ID.Hex())
	assert.ErrorIs(t, err, ErrNotProductOwner)
	_, err = f.catalog.AuthorizeProduct(ctx, customer, p.ID.Hex())
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	// missing products are reported before ownership
	_, err = f.catalog.AuthorizeProduct(ctx, rival, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProduct(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	vendor := f.user(t, "vendor", models.RoleVendor)
	p := f.product(t, vendor, f.category(t), "Lamp", 20)

	_, err := f.catalog.UpdateProduct(ctx, p, models.ProductPatch{})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	price := 25.5
	name := "Desk lamp"
	updated, err := f.catalog.UpdateProduct(ctx, p, models.ProductPatch{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", updated.Name)
	assert.Equal(t, 25.5, updated.Price)
	assert.Equal(t, vendor.UserID, updated.VendorID)

	stored, err := f.catalog.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", stored.Name)
}

func TestUpdateProductTrimsText(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	vendor := f.user(t, "vendor", models.RoleVendor)
	p := f.product(t, vendor, f.category(t), "Lamp", 20)

	name, description := "  Desk lamp ", "\tbrass base  "
	updated, err := f.catalog.UpdateProduct(ctx, p, models.ProductPatch{Name: &name, Description: &description})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", updated.Name)
	assert.Equal(t, "brass base", updated.Description)

	blank := "   "
	_, err = f.catalog.UpdateProduct(ctx, p, models.ProductPatch{Name: &blank})
	assert.Equal(t, "INVALID_INPUT", apperror.From(err).Code)
}

func TestDeleteCategoryInUse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	vendor := f.user(t, "vendor", models.RoleVendor)
	books := f.category(t)
	p := f.product(t, vendor, books, "Go in Action", 10)

	err := f.catalog.DeleteCategory(ctx, books.ID.Hex())
	assert.ErrorIs(t, err, ErrCategoryInUse)
	assert.Equal(t, 409, apperror.From(err).Status())

	require.NoError(t, f.catalog.DeleteProduct(ctx, p))
	require.NoError(t, f.catalog.DeleteCategory(ctx, books.ID.Hex()))

	err = f.catalog.DeleteCategory(ctx, books.ID.Hex())
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDeleteAllProducts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	vendor := f.user(t, "vendor", models.RoleVendor)
	admin := f.user(t, "admin", models.RoleAdmin)
	books := f.category(t)
	f.product(t, vendor, books, "A", 1)
	f.product(t, vendor, books, "B", 2)

	_, err := f.catalog.DeleteAllProducts(ctx, vendor)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	n, err := f.catalog.DeleteAllProducts(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	products, err := f.catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

type stubIndex struct {
	ids     []primitive.ObjectID
	err     error
	indexed []primitive.ObjectID
}

func (s *stubIndex) Index(_ context.Context, p models.Product) error {
	s.indexed = append(s.indexed, p.ID)
	return nil
}
func (s *stubIndex) Remove(context.Context, primitive.ObjectID) error { return nil }
func (s *stubIndex) RemoveAll(context.Context) error                  { return nil }
func (s *stubIndex) Search(context.Context, string) ([]primitive.ObjectID, error) {
	return s.ids, s.err
}

func TestSearchProducts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	vendor := f.user(t, "vendor", models.RoleVendor)
	books := f.category(t)
	lamp := f.product(t, vendor, books, "Desk Lamp", 20)
	f.product(t, vendor, books, "Chair", 50)

	found, err := f.catalog.SearchProducts(ctx, "lamp")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, lamp.ID, found[0].ID)

	_, err = f.catalog.SearchProducts(ctx, "  ")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestSearchProductsUsesIndex(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	index := &stubIndex{}
	f.catalog = NewCatalogService(f.store, index)
	vendor := f.user(t, "vendor", models.RoleVendor)
	books := f.category(t)
	lamp := f.product(t, vendor, books, "Desk Lamp", 20)
	chair := f.product(t, vendor, books, "Chair", 50)
	assert.Equal(t, []primitive.ObjectID{lamp.ID, chair.ID}, index.indexed)

	index.ids = []primitive.ObjectID{chair.ID, primitive.NewObjectID()}
	found, err := f.catalog.SearchProducts(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, chair.ID, found[0].ID)

	index.err = errors.New("cluster down")
	found, err = f.catalog.SearchProducts(ctx, "lamp")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, lamp.ID, found[0].ID)
}
