package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/audit"
	"shop_back_end/internal/handlers"
	"shop_back_end/internal/services"
)

type Handler struct {
	orders *services.OrderService
	audit  audit.Reader
}

// NewHandler builds the admin handler. auditReader may be nil when no audit
// store is configured.
func NewHandler(orders *services.OrderService, auditReader audit.Reader) *Handler {
	return &Handler{orders: orders, audit: auditReader}
}

// GET /admin/orders?status=&userId=
func (h *Handler) GetAllOrders(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}
	list, err := h.orders.ListAllOrders(c.Request.Context(), identity, c.Query("status"), c.Query("userId"))
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "All orders retrieved successfully",
		"code":    "ORDERS_RETRIEVED",
		"stats":   list.Stats,
		"count":   len(list.Orders),
		"orders":  list.Orders,
	})
}

// PATCH /admin/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	identity, ok := handlers.Identity(c)
	if !ok {
		return
	}

	var input struct {
		Status string  `json:"status" binding:"required"`
		Notes  *string `json:"notes"`
	}
	if !handlers.BindJSON(c, &input) {
		return
	}

	change, err := h.orders.UpdateOrderStatus(c.Request.Context(), identity, c.Param("id"), input.Status, input.Notes)
	if err != nil {
		handlers.Error(c, err)
		return
	}

	order := change.Order
	log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"from":         change.Previous,
		"to":           order.Status,
		"admin_id":     identity.UserID.Hex(),
	}).Info("order status updated")

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Order status updated successfully from %s to %s", change.Previous.Label(), order.Status.Label()),
		"code":    "STATUS_UPDATED",
		"order": gin.H{
			"id":             order.ID,
			"orderNumber":    order.OrderNumber,
			"previousStatus": change.Previous,
			"currentStatus":  order.Status,
			"statusLabel":    order.Status.Label(),
			"totalAmount":    order.TotalAmount,
			"notes":          order.Notes,
			"updatedAt":      order.UpdatedAt,
		},
	})
}
