package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shop_back_end/internal/handlers"
)

// GET /cart
func (h *Handler) GetCart(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(c.Request.Context(), identity.UserID)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart retrieved successfully", "cart": cart})
}

// POST /cart
func (h *Handler) AddToCart(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}

	var input struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	item, err := h.carts.AddToCart(c.Request.Context(), identity.UserID, input.ProductID, input.Quantity)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product added to cart", "item": item})
}

// DELETE /cart/:id
func (h *Handler) RemoveFromCart(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	if err := h.carts.RemoveFromCart(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// DELETE /cart/clear
func (h *Handler) ClearCart(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	removed, err := h.carts.ClearCart(c.Request.Context(), identity.UserID)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared", "removed": removed})
}
