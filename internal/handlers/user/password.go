package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shop_back_end/internal/handlers"
)

// PUT /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}

	var input struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), identity, input.OldPassword, input.NewPassword); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
