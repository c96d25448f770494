package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/handlers"
	"shop_back_end/internal/services"
)

// POST /orders
func (h *Handler) CreateOrder(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}

	var input struct {
		ShippingAddress *string `json:"shippingAddress"`
		PaymentMethod   *string `json:"paymentMethod"`
		Notes           *string `json:"notes"`
	}
	// the body is optional
	if c.Request.ContentLength != 0 && !handlers.BindJSON(c, &input) {
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), identity.UserID, services.CheckoutInput{
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		Notes:           input.Notes,
	})
	if err != nil {
		handlers.Error(c, err)
		return
	}

	handlers.SetAuditResource(c, order.ID.Hex())
	log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"user_id":      identity.UserID.Hex(),
		"total":        order.TotalAmount,
	}).Info("order created")

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully! Your order is pending confirmation.",
		"code":    "ORDER_CREATED",
		"order":   order,
	})
}

// GET /orders?status=&sortBy=
func (h *Handler) GetMyOrders(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	orders, err := h.orders.ListMyOrders(c.Request.Context(), identity.UserID, c.Query("status"), c.Query("sortBy"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Your orders retrieved successfully",
		"code":    "ORDERS_RETRIEVED",
		"count":   len(orders),
		"orders":  orders,
	})
}

// GET /orders/:id (id or order number)
func (h *Handler) GetOrderByID(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"code":    "ORDER_RETRIEVED",
		"order":   order,
	})
}

// PATCH /orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	handlers.SetAuditResource(c, order.ID.Hex())
	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"code":    "ORDER_CANCELLED",
		"order": gin.H{
			"id":          order.ID,
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
			"statusLabel": order.Status.Label(),
			"totalAmount": order.TotalAmount,
			"cancelledAt": order.UpdatedAt,
		},
	})
}
