// Package audit records critical actions (logins, catalog and order changes).
package audit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/models"
)

const (
	ActionRegister       = "auth.register"
	ActionLoginSuccess   = "auth.login_success"
	ActionLoginFailed    = "auth.login_failed"
	ActionLogout         = "auth.logout"
	ActionPasswordChange = "auth.password_change"

	ActionCategoryCreate = "category.create"
	ActionCategoryDelete = "category.delete"

	ActionProductCreate    = "product.create"
	ActionProductUpdate    = "product.update"
	ActionProductDelete    = "product.delete"
	ActionProductDeleteAll = "product.delete_all"

	ActionOrderCreate       = "order.create"
	ActionOrderCancel       = "order.cancel"
	ActionOrderStatusUpdate = "order.status_update"
)

const (
	ResourceAuth     = "auth"
	ResourceCategory = "category"
	ResourceProduct  = "product"
	ResourceOrder    = "order"
)

type Recorder interface {
	Record(ctx context.Context, entry models.AuditLog) error
}

// Query narrows a listing. Empty fields match everything.
type Query struct {
	Day      time.Time
	UserID   string
	Action   string
	Resource string
	Limit    int
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Reader is implemented by sinks that can list what they recorded.
type Reader interface {
	List(ctx context.Context, q Query) ([]models.AuditLog, error)
}

func (q Query) matches(e models.AuditLog) bool {
	return (q.UserID == "" || e.UserID == q.UserID) &&
		(q.Action == "" || e.Action == q.Action) &&
		(q.Resource == "" || e.Resource == q.Resource)
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	}
	return q.Limit
}

// LogSink writes entries to the application log.
type LogSink struct{}

func (LogSink) Record(_ context.Context, e models.AuditLog) error {
	log.WithFields(log.Fields{
		"audit":       true,
		"user_id":     e.UserID,
		"role":        e.Role,
		"action":      e.Action,
		"resource":    e.Resource,
		"resource_id": e.ResourceID,
		"status":      e.Status,
		"success":     e.Success,
		"ip":          e.IPAddress,
		"request_id":  e.RequestID,
	}).Info("audit")
	return nil
}

// Async records in a background goroutine so requests never wait on the sink.
// Failures are logged.
type Async struct {
	Next    Recorder
	Timeout time.Duration
}

func (a Async) Record(ctx context.Context, e models.AuditLog) error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := a.Next.Record(ctx, e); err != nil {
			log.WithError(err).WithField("action", e.Action).Error("recording audit log")
		}
	}()
	return nil
}
