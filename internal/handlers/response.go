// Package handlers holds the helpers shared by the HTTP handler packages.
package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/middleware"
)

// Error writes err using the error taxonomy. Internal causes are logged and
// never sent to the client.
func Error(c *gin.Context, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		log.WithError(err).WithFields(log.Fields{
			"request_id": middleware.RequestIDFrom(c),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	middleware.Abort(c, appErr)
}

// BindJSON decodes the body into v and answers 400 when that fails.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		Error(c, apperror.Validation("INVALID_INPUT", bindingMessage(err)))
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Identity returns the authenticated caller. Routes using it sit behind
// AuthRequired, so a missing identity is answered with 401.
func Identity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		middleware.Abort(c, middleware.ErrUnauthenticated)
	}
	return identity, ok
}

// SetAuditUser names the acting user on routes without an identity (login,
// register).
func SetAuditUser(c *gin.Context, userID, role string) {
	c.Set(middleware.AuditUserKey, userID)
	c.Set(middleware.AuditRoleKey, role)
}

// SetAuditAction replaces the action recorded for this request.
func SetAuditAction(c *gin.Context, action string) {
	c.Set(middleware.AuditActionKey, action)
}

// SetAuditResource names the resource a handler created.
func SetAuditResource(c *gin.Context, id string) {
	c.Set(middleware.AuditResourceKey, id)
}
