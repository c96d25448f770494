package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
)

var ErrCartItemNotFound = apperror.NotFound("CART_ITEM_NOT_FOUND", "Cart item not found")

type CartService struct {
	store store.Store
	now   Clock
}

func NewCartService(st store.Store) *CartService {
	return &CartService{store: st, now: utcNow}
}

// AddToCart adds quantity (default 1) of a product. Adding a product that is
// already in the cart increments the existing line.
func (s *CartService) AddToCart(ctx context.Context, userID primitive.ObjectID, rawProductID string, quantity int) (models.CartItem, error) {
	productID, err := ParseID("product", rawProductID)
	if err != nil {
		return models.CartItem{}, err
	}
	if quantity < 0 {
		return models.CartItem{}, apperror.Validation("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	if quantity == 0 {
		quantity = 1
	}
	if _, err := s.store.Products().FindByID(ctx, productID); err != nil {
		return models.CartItem{}, notFoundOr(err, ErrProductNotFound)
	}

	now := s.now()
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.store.Cart().FindItem(ctx, userID, productID)
		if err == nil {
			item, err := s.store.Cart().AddQuantity(ctx, existing.ID, quantity, now)
			if err != nil {
				return models.CartItem{}, notFoundOr(err, ErrCartItemNotFound)
			}
			return item, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.CartItem{}, apperror.Internal(err)
		}

		item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity, CreatedAt: now, UpdatedAt: now}
		err = s.store.Cart().Insert(ctx, &item)
		if err == nil {
			return item, nil
		}
		// a concurrent add created the line first; merge into it
		if !errors.Is(err, store.ErrDuplicate) {
			return models.CartItem{}, apperror.Internal(err)
		}
	}
	return models.CartItem{}, apperror.Internal(errors.New("cart line kept changing during add"))
}

// GetCart returns the cart joined to current product data. Lines whose
// product was deleted are returned with a nil Product and excluded from the
// total.
func (s *CartService) GetCart(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	lines, err := s.lines(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}

	cart := models.Cart{UserID: userID, Items: lines}
	total := decimal.Zero
	for _, line := range lines {
		cart.Count += line.Quantity
		if line.Product != nil {
			total = total.Add(decimal.NewFromFloat(line.Product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}
	cart.Total = total.Round(2).InexactFloat64()
	return cart, nil
}

func (s *CartService) lines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	items, err := s.store.Cart().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		line := models.CartLine{CartItem: item}
		if p, ok := products[item.ProductID]; ok {
			line.Product = &p
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// RemoveFromCart deletes one of the caller's lines. A line owned by someone
// else is reported as not found.
func (s *CartService) RemoveFromCart(ctx context.Context, userID primitive.ObjectID, rawItemID string) error {
	itemID, err := ParseID("cart item", rawItemID)
	if err != nil {
		return err
	}
	if err := s.store.Cart().DeleteItem(ctx, userID, itemID); err != nil {
		return notFoundOr(err, ErrCartItemNotFound)
	}
	return nil
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.store.Cart().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return n, nil
}
