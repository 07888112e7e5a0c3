package companies

import (
	"strings"
	"time"
)

// Company represents a company entity. The TIN prefix feeds voucher folio
// generation.
type Company struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	LegalName  string    `json:"legal_name,omitempty"`
	TIN        string    `json:"tin"`
	TaxSystem  string    `json:"tax_system"`
	City       string    `json:"city,omitempty"`
	Address    string    `json:"address,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Website    string    `json:"website,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FolioCode is the company prefix in voucher folios.
func (c Company) FolioCode() string {
	code := c.TIN
	if len(code) > 3 {
		code = code[:3]
	}
	return strings.ToUpper(code)
}

// Statistics summarizes the company catalog.
type Statistics struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}
