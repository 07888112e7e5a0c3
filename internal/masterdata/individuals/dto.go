package individuals

import "time"

type IndividualForm struct {
	FirstName      string     `json:"first_name" validate:"required,max=100"`
	LastName       string     `json:"last_name" validate:"required,max=100"`
	Email          string     `json:"email" validate:"omitempty,email,max=150"`
	Phone          string     `json:"phone" validate:"max=20"`
	DocumentType   string     `json:"document_type" validate:"max=30"`
	DocumentNumber string     `json:"document_number" validate:"max=50"`
	HireDate       *time.Time `json:"hire_date"`
	IsActive       bool       `json:"is_active"`
}

func (f IndividualForm) toModel() Individual {
	return Individual{
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		Email:          f.Email,
		Phone:          f.Phone,
		DocumentType:   f.DocumentType,
		DocumentNumber: f.DocumentNumber,
		HireDate:       f.HireDate,
		IsActive:       f.IsActive,
	}
}

// WithUserForm creates an individual together with a login account.
type WithUserForm struct {
	IndividualForm
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleName string `json:"role_name" validate:"required"`
}
