package middleware

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/auth"
)

const identityKey = "identity"

// ErrUnauthenticated is the single 401 every authentication failure gets, so
// clients cannot tell a missing token from a forged or expired one.
var ErrUnauthenticated = apperror.Unauthenticated("UNAUTHENTICATED", "Authentication required")

// Abort writes the standard error body and stops the chain.
func Abort(c *gin.Context, err *apperror.Error) {
	c.AbortWithStatusJSON(err.Status(), gin.H{"error": err.Message, "code": err.Code})
}

// AuthRequired verifies the bearer token and stores the caller's identity on
// the context. revoker may be nil.
func AuthRequired(issuer *auth.Issuer, revoker auth.Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			Abort(c, ErrUnauthenticated)
			return
		}

		identity, err := issuer.Verify(token)
		if err != nil {
			log.WithError(err).WithField("request_id", RequestIDFrom(c)).Debug("rejected token")
			Abort(c, ErrUnauthenticated)
			return
		}

		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.Request.Context(), identity)
			if err != nil {
				log.WithError(err).Error("checking token revocation")
				Abort(c, apperror.Internal(err))
				return
			}
			if revoked {
				Abort(c, ErrUnauthenticated)
				return
			}
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthRequired.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}
