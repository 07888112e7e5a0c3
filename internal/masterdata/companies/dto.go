package companies

type CompanyForm struct {
	Name       string `json:"name" validate:"required,max=200"`
	LegalName  string `json:"legal_name" validate:"max=200"`
	TIN        string `json:"tin" validate:"required,max=30"`
	TaxSystem  string `json:"tax_system" validate:"required,max=10"`
	City       string `json:"city" validate:"max=100"`
	Address    string `json:"address" validate:"max=255"`
	PostalCode string `json:"postal_code" validate:"max=10"`
	Phone      string `json:"phone" validate:"max=20"`
	Email      string `json:"email" validate:"omitempty,email,max=150"`
	Website    string `json:"website" validate:"max=150"`
	IsActive   bool   `json:"is_active"`
}

func (f CompanyForm) toModel() Company {
	return Company{
		Name:       f.Name,
		LegalName:  f.LegalName,
		TIN:        f.TIN,
		TaxSystem:  f.TaxSystem,
		City:       f.City,
		Address:    f.Address,
		PostalCode: f.PostalCode,
		Phone:      f.Phone,
		Email:      f.Email,
		Website:    f.Website,
		IsActive:   f.IsActive,
	}
}
