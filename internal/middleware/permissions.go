package middleware

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/models"
)

var ErrInsufficientRole = apperror.Forbidden("FORBIDDEN", "You do not have permission to perform this action")

// RequireRoles lets the request through only when the caller's role is one of
// roles. It must run after AuthRequired.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			Abort(c, ErrUnauthenticated)
			return
		}
		if !identity.Role.In(roles...) {
			log.WithFields(log.Fields{
				"user_id":  identity.UserID.Hex(),
				"role":     identity.Role,
				"required": roles,
				"path":     c.FullPath(),
			}).Info("permission denied")
			Abort(c, ErrInsufficientRole)
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}
