package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/audit"
	"shop_back_end/internal/models"
)

// Handlers that learn who the caller is (login, register) or which resource
// they created set these keys so the audit entry can name them. AuditActionKey
// replaces the route's action, e.g. a failed login.
const (
	AuditUserKey     = "audit_user_id"
	AuditRoleKey     = "audit_role"
	AuditResourceKey = "audit_resource_id"
	AuditActionKey   = "audit_action"
)

// AuditCriticalActions records one audit entry per request once the handler
// has run, successful or not.
func AuditCriticalActions(recorder audit.Recorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resourceID := c.Param("id")

		c.Next()

		if recorder == nil {
			return
		}
		if id := c.GetString(AuditResourceKey); id != "" {
			resourceID = id
		}
		recorded := action
		if override := c.GetString(AuditActionKey); override != "" {
			recorded = override
		}
		status := c.Writer.Status()
		entry := models.AuditLog{
			Action:     recorded,
			Resource:   resource,
			ResourceID: resourceID,
			Status:     status,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			RequestID:  RequestIDFrom(c),
			Success:    status >= 200 && status < 300,
			Timestamp:  time.Now().UTC(),
		}
		if identity, ok := CurrentIdentity(c); ok {
			entry.UserID = identity.UserID.Hex()
			entry.Role = string(identity.Role)
		} else {
			entry.UserID = c.GetString(AuditUserKey)
			entry.Role = c.GetString(AuditRoleKey)
		}

		if err := recorder.Record(c.Request.Context(), entry); err != nil {
			log.WithError(err).WithField("action", recorded).Error("recording audit log")
		}
	}
}
