package product

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/handlers"
	"shop_back_end/internal/models"
	"shop_back_end/internal/services"
)

type Handler struct {
	catalog *services.CatalogService
}

func NewHandler(catalog *services.CatalogService) *Handler {
	return &Handler{catalog: catalog}
}

// GET /products
func (h *Handler) GetAllProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Products retrieved successfully", "count": len(products), "products": products})
}

// GET /products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product retrieved successfully", "product": product})
}

// GET /products/search?q=
func (h *Handler) SearchProducts(c *gin.Context) {
	query := c.Query("q")
	products, err := h.catalog.SearchProducts(c.Request.Context(), query)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Search completed", "query": query, "count": len(products), "products": products})
}

// POST /products
func (h *Handler) CreateProduct(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}

	var input struct {
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		Price       float64 `json:"price" binding:"required,gt=0"`
		Category    string  `json:"category" binding:"required"`
		InStock     *bool   `json:"inStock"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), identity, services.ProductInput{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		InStock:     input.InStock,
	})
	if err != nil {
		handlers.Error(c, err)
		return
	}

	handlers.SetAuditResource(c, product.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{"message": "Product created successfully", "product": product})
}

// PUT /products/:id
//
// Ownership is checked before the body is read, so a vendor touching another
// vendor's product gets 403 whatever they send.
func (h *Handler) UpdateProduct(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	product, err := h.catalog.AuthorizeProduct(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}

	var input struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Category    *string  `json:"category"`
		InStock     *bool    `json:"inStock"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	patch := models.ProductPatch{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		InStock:     input.InStock,
	}
	if input.Category != nil {
		categoryID, err := services.ParseID("category", *input.Category)
		if err != nil {
			handlers.Error(c, err)
			return
		}
		patch.Category = &categoryID
	}

	updated, err := h.catalog.UpdateProduct(c.Request.Context(), product, patch)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": updated})
}

// DELETE /products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	product, err := h.catalog.AuthorizeProduct(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), product); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// DELETE /products
func (h *Handler) DeleteAllProducts(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	removed, err := h.catalog.DeleteAllProducts(c.Request.Context(), identity)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	log.WithFields(log.Fields{"user_id": identity.UserID.Hex(), "removed": removed}).Warn("all products deleted")
	c.JSON(http.StatusOK, gin.H{"message": "All products deleted", "removed": removed})
}
