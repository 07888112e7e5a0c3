package individuals

import (
	"time"
)

// Individual represents a person who can sign vouchers: approvers,
// deliverers, receivers and gate checkers. Optionally linked to a login
// account via UserID.
type Individual struct {
	ID             int64      `json:"id"`
	UserID         *int64     `json:"user_id,omitempty"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	DocumentType   string     `json:"document_type,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	HireDate       *time.Time `json:"hire_date,omitempty"`
	IsVerified     bool       `json:"is_verified"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName joins the name parts for display.
func (i Individual) FullName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Statistics summarizes the individual registry.
type Statistics struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Verified   int `json:"verified"`
	WithLogin  int `json:"with_login"`
	Unverified int `json:"unverified"`
}
