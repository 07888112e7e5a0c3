// Package users manages login accounts. Every account carries exactly
// one role name, which is the role-template tier of permission
// resolution.
package users

import (
	"fmt"
	"time"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

var (
	ErrNotFound  = fmt.Errorf("users: %w", httpx.ErrNotFound)
	ErrDuplicate = fmt.Errorf("users: %w", httpx.ErrDuplicate)
)

// User is a login account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	RoleName     string    `json:"role_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
