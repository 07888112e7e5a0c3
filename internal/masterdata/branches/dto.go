package branches

type BranchForm struct {
	Code        string `json:"code" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=200"`
	Type        string `json:"type" validate:"required,max=50"`
	Description string `json:"description"`
	CompanyID   int64  `json:"company_id" validate:"required,gt=0"`
	City        string `json:"city" validate:"max=100"`
	Address     string `json:"address" validate:"max=255"`
	PostalCode  string `json:"postal_code" validate:"max=10"`
	Phone       string `json:"phone" validate:"max=20"`
	Email       string `json:"email" validate:"omitempty,email,max=150"`
	ManagerID   *int64 `json:"manager_id"`
	IsActive    bool   `json:"is_active"`
}

func (f BranchForm) toModel() Branch {
	return Branch{
		Code:        f.Code,
		Name:        f.Name,
		Type:        f.Type,
		Description: f.Description,
		CompanyID:   f.CompanyID,
		City:        f.City,
		Address:     f.Address,
		PostalCode:  f.PostalCode,
		Phone:       f.Phone,
		Email:       f.Email,
		ManagerID:   f.ManagerID,
		IsActive:    f.IsActive,
	}
}
