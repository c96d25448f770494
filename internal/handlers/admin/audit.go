package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/audit"
	"shop_back_end/internal/handlers"
)

// GET /admin/audit-logs?day=YYYY-MM-DD&user_id=&action=&resource=&limit=
func (h *Handler) GetAuditLogs(c *gin.Context) {
	if h.audit == nil {
		handlers.Error(c, apperror.NotFound("AUDIT_DISABLED", "Audit log is not configured"))
		return
	}

	q := audit.Query{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			handlers.Error(c, apperror.Validation("INVALID_INPUT", "limit must be a positive integer"))
			return
		}
		q.Limit = limit
	}
	if raw := c.Query("day"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			handlers.Error(c, apperror.Validation("INVALID_INPUT", "day must be formatted YYYY-MM-DD"))
			return
		}
		q.Day = day
	}

	logs, err := h.audit.List(c.Request.Context(), q)
	if err != nil {
		handlers.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Audit logs retrieved successfully", "count": len(logs), "logs": logs})
}
