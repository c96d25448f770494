package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/audit"
	"shop_back_end/internal/handlers"
	"shop_back_end/internal/services"
)

// Handler serves the authenticated customer surface: account, cart and
// orders.
type Handler struct {
	accounts *services.AccountService
	carts    *services.CartService
	orders   *services.OrderService
}

func NewHandler(accounts *services.AccountService, carts *services.CartService, orders *services.OrderService) *Handler {
	return &Handler{accounts: accounts, carts: carts, orders: orders}
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
	})
	if err != nil {
		handlers.Error(c, err)
		return
	}

	handlers.SetAuditUser(c, user.ID.Hex(), string(user.Role))
	handlers.SetAuditResource(c, user.ID.Hex())
	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("user registered")

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully!",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		handlers.SetAuditAction(c, audit.ActionLoginFailed)
		handlers.Error(c, services.ErrInvalidCredentials)
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if apperror.IsKind(err, apperror.KindUnauthenticated) {
			handlers.SetAuditAction(c, audit.ActionLoginFailed)
		}
		handlers.Error(c, err)
		return
	}

	handlers.SetAuditUser(c, session.User.ID.Hex(), string(session.User.Role))
	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     session.Token,
		"expiresAt": session.Identity.ExpiresAt,
		"user": gin.H{
			"id":       session.User.ID,
			"username": session.User.Username,
			"email":    session.User.Email,
			"role":     session.User.Role,
		},
	})
}

// GET /auth/profile
func (h *Handler) Profile(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), identity.UserID)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile retrieved successfully", "user": user})
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), identity); err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
