package product

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shop_back_end/internal/handlers"
	"shop_back_end/internal/services"
)

// GET /categories
func (h *Handler) GetCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Categories retrieved successfully", "categories": categories})
}

// POST /categories
func (h *Handler) CreateCategory(c *gin.Context) {
	var input struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), services.CategoryInput{Name: input.Name, Description: input.Description})
	if err != nil {
		handlers.Error(c, err)
		return
	}
	handlers.SetAuditResource(c, category.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{"message": "Category created successfully", "category": category})
}

// DELETE /categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
