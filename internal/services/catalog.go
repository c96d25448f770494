package services

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
)

var (
	ErrCategoryNotFound = apperror.NotFound("CATEGORY_NOT_FOUND", "Category not found")
	ErrCategoryInUse    = apperror.Conflict("CATEGORY_IN_USE", "Category is still used by products")
	ErrProductNotFound  = apperror.NotFound("PRODUCT_NOT_FOUND", "Product not found")
	ErrNotProductOwner  = apperror.Forbidden("NOT_OWNER", "You can only modify your own products")
	ErrCatalogRole      = apperror.Forbidden("FORBIDDEN", "Only Admin or Vendor accounts can manage products")
)

// ProductIndex mirrors the catalog into a search engine. Search returns
// matching product ids ordered by relevance.
type ProductIndex interface {
	Index(ctx context.Context, p models.Product) error
	Remove(ctx context.Context, id primitive.ObjectID) error
	RemoveAll(ctx context.Context) error
	Search(ctx context.Context, query string) ([]primitive.ObjectID, error)
}

type CategoryInput struct {
	Name        string
	Description string
}

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	InStock     *bool
}

type CatalogService struct {
	store store.Store
	index ProductIndex
	now   Clock
}

// NewCatalogService builds the catalog service. index may be nil.
func NewCatalogService(st store.Store, index ProductIndex) *CatalogService {
	return &CatalogService{store: st, index: index, now: utcNow}
}

// --- categories ---

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Category{}, apperror.Validation("INVALID_INPUT", "Category name is required")
	}
	now := s.now()
	category := models.Category{Name: name, Description: strings.TrimSpace(in.Description), CreatedAt: now, UpdatedAt: now}
	if err := s.store.Categories().Create(ctx, &category); err != nil {
		return models.Category{}, apperror.Internal(err)
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.Categories().List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return categories, nil
}

// DeleteCategory refuses to delete a category that products still reference.
func (s *CatalogService) DeleteCategory(ctx context.Context, rawID string) error {
	id, err := ParseID("category", rawID)
	if err != nil {
		return err
	}
	if _, err := s.store.Categories().FindByID(ctx, id); err != nil {
		return notFoundOr(err, ErrCategoryNotFound)
	}
	inUse, err := s.store.Products().CountByCategory(ctx, id)
	if err != nil {
		return apperror.Internal(err)
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}
	if err := s.store.Categories().Delete(ctx, id); err != nil {
		return notFoundOr(err, ErrCategoryNotFound)
	}
	return nil
}

// --- products ---

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.Products().List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, rawID string) (models.Product, error) {
	id, err := ParseID("product", rawID)
	if err != nil {
		return models.Product{}, err
	}
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return models.Product{}, notFoundOr(err, ErrProductNotFound)
	}
	return product, nil
}

// CreateProduct stores a product owned by the caller. The vendor is always
// the caller, never client input.
func (s *CatalogService) CreateProduct(ctx context.Context, caller auth.Identity, in ProductInput) (models.Product, error) {
	if !caller.Role.In(models.RoleAdmin, models.RoleVendor) {
		return models.Product{}, ErrCatalogRole
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Product{}, apperror.Validation("INVALID_INPUT", "Product name is required")
	}
	if in.Price <= 0 {
		return models.Product{}, apperror.Validation("INVALID_PRICE", "Price must be greater than 0")
	}
	categoryID, err := s.requireCategory(ctx, in.Category)
	if err != nil {
		return models.Product{}, err
	}

	inStock := true
	if in.InStock != nil {
		inStock = *in.InStock
	}
	now := s.now()
	product := models.Product{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    categoryID,
		VendorID:    caller.UserID,
		InStock:     inStock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Products().Create(ctx, &product); err != nil {
		return models.Product{}, apperror.Internal(err)
	}
	s.reindex(ctx, product)
	return product, nil
}

func (s *CatalogService) requireCategory(ctx context.Context, raw string) (primitive.ObjectID, error) {
	if raw == "" {
		return primitive.NilObjectID, apperror.Validation("INVALID_ID", "Category is required")
	}
	id, err := ParseID("category", raw)
	if err != nil {
		return id, err
	}
	if _, err := s.store.Categories().FindByID(ctx, id); err != nil {
		return id, notFoundOr(err, ErrCategoryNotFound)
	}
	return id, nil
}

// AuthorizeProduct loads the product and checks the caller may mutate it:
// Admin always, Vendor only for their own products. It runs before the
// request body is looked at, so a non-owner gets 403 whatever they send.
func (s *CatalogService) AuthorizeProduct(ctx context.Context, caller auth.Identity, rawID string) (models.Product, error) {
	id, err := ParseID("product", rawID)
	if err != nil {
		return models.Product{}, err
	}
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return models.Product{}, notFoundOr(err, ErrProductNotFound)
	}
	switch {
	case caller.Role == models.RoleAdmin:
		return product, nil
	case caller.Role == models.RoleVendor && product.OwnedBy(caller.UserID):
		return product, nil
	case caller.Role == models.RoleVendor:
		return models.Product{}, ErrNotProductOwner
	}
	return models.Product{}, ErrCatalogRole
}

// UpdateProduct applies patch to a product the caller was authorized for.
func (s *CatalogService) UpdateProduct(ctx context.Context, product models.Product, patch models.ProductPatch) (models.Product, error) {
	if patch.Empty() {
		return models.Product{}, apperror.Validation("INVALID_INPUT", "No fields to update")
	}
	patch.Name = trimmed(patch.Name)
	patch.Description = trimmed(patch.Description)
	if patch.Name != nil && *patch.Name == "" {
		return models.Product{}, apperror.Validation("INVALID_INPUT", "Product name cannot be empty")
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return models.Product{}, apperror.Validation("INVALID_PRICE", "Price must be greater than 0")
	}
	if patch.Category != nil {
		if _, err := s.store.Categories().FindByID(ctx, *patch.Category); err != nil {
			return models.Product{}, notFoundOr(err, ErrCategoryNotFound)
		}
	}

	updated, err := s.store.Products().Update(ctx, product.ID, patch, s.now())
	if err != nil {
		return models.Product{}, notFoundOr(err, ErrProductNotFound)
	}
	s.reindex(ctx, updated)
	return updated, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (s *CatalogService) DeleteProduct(ctx context.Context, product models.Product) error {
	if err := s.store.Products().Delete(ctx, product.ID); err != nil {
		return notFoundOr(err, ErrProductNotFound)
	}
	if s.index != nil {
		if err := s.index.Remove(ctx, product.ID); err != nil {
			log.WithError(err).WithField("product_id", product.ID.Hex()).Warn("removing product from search index")
		}
	}
	return nil
}

// DeleteAllProducts removes every product. Admin only.
func (s *CatalogService) DeleteAllProducts(ctx context.Context, caller auth.Identity) (int64, error) {
	if caller.Role != models.RoleAdmin {
		return 0, apperror.Forbidden("FORBIDDEN", "Admin access required")
	}
	n, err := s.store.Products().DeleteAll(ctx)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	if s.index != nil {
		if err := s.index.RemoveAll(ctx); err != nil {
			log.WithError(err).Warn("clearing search index")
		}
	}
	return n, nil
}

// SearchProducts queries the search index and falls back to the document
// store when the index is missing or failing.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("INVALID_INPUT", "Search query is required")
	}

	if s.index != nil {
		products, err := s.searchIndex(ctx, query)
		if err == nil {
			return products, nil
		}
		log.WithError(err).WithField("query", query).Warn("search index unavailable, falling back to store")
	}

	products, err := s.store.Products().Search(ctx, query)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return products, nil
}

func (s *CatalogService) searchIndex(ctx context.Context, query string) ([]models.Product, error) {
	ids, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	found, err := s.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		// the index may lag behind deletions
		if p, ok := found[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CatalogService) reindex(ctx context.Context, p models.Product) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, p); err != nil {
		log.WithError(err).WithField("product_id", p.ID.Hex()).Warn("indexing product")
	}
}
