package countries

import (
	"time"
)

// Country is an ISO 3166 lookup row. Companies reference it for their
// fiscal address.
type Country struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ISOCode2     string    `json:"iso_code_2"`
	ISOCode3     string    `json:"iso_code_3"`
	NumericCode  string    `json:"numeric_code,omitempty"`
	PhoneCode    string    `json:"phone_code,omitempty"`
	CurrencyCode string    `json:"currency_code,omitempty"`
	CurrencyName string    `json:"currency_name,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
