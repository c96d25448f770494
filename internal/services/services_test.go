package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/auth"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store/memstore"
)

type fixture struct {
	store    *memstore.Store
	revoker  *auth.MemoryRevoker
	tokens   *auth.Issuer
	accounts *AccountService
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	tokens, err := auth.NewIssuer("test-secret", auth.DefaultTTL)
	require.NoError(t, err)
	revoker := auth.NewMemoryRevoker()
	carts := NewCartService(st)
	return &fixture{
		store:    st,
		revoker:  revoker,
		tokens:   tokens,
		accounts: NewAccountService(st, tokens, revoker),
		catalog:  NewCatalogService(st, nil),
		carts:    carts,
		orders:   NewOrderService(st, carts),
	}
}

func (f *fixture) user(t *testing.T, name string, role models.Role) auth.Identity {
	t.Helper()
	u, err := f.accounts.createUser(context.Background(), name, name+"@example.com", "Password123!", role)
	require.NoError(t, err)
	return auth.Identity{UserID: u.ID, Role: u.Role, TokenID: primitive.NewObjectID().Hex(), IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
}

func (f *fixture) category(t *testing.T) models.Category {
	t.Helper()
	c, err := f.catalog.CreateCategory(context.Background(), CategoryInput{Name: "Books"})
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, owner auth.Identity, category models.Category, name string, price float64) models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), owner, ProductInput{Name: name, Price: price, Category: category.ID.Hex()})
	require.NoError(t, err)
	return p
}
