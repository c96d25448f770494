package models

import (
	"strings"
	"time"
)

// Role is the fixed RBAC role carried by every account and embedded in its tokens.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleVendor   Role = "Vendor"
	RoleCustomer Role = "Customer"
)

var AllRoles = []Role{RoleAdmin, RoleVendor, RoleCustomer}

// SelfAssignableRoles are the roles a visitor may pick at registration.
// Admin accounts are only created through the create-admin command.
var SelfAssignableRoles = []Role{RoleCustomer, RoleVendor}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole accepts any casing ("vendor", "VENDOR") and returns the canonical role.
func ParseRole(s string) (Role, bool) {
	for _, role := range AllRoles {
		if strings.EqualFold(s, string(role)) {
			return role, true
		}
	}
	return "", false
}

func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuditLog is one recorded critical action.
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Status     int       `json:"status"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	RequestID  string    `json:"request_id,omitempty"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
}
