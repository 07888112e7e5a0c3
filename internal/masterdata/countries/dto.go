package countries

type CountryForm struct {
	Name         string `json:"name" validate:"required,max=200"`
	ISOCode2     string `json:"iso_code_2" validate:"required,len=2,alpha"`
	ISOCode3     string `json:"iso_code_3" validate:"required,len=3,alpha"`
	NumericCode  string `json:"numeric_code" validate:"omitempty,len=3,numeric"`
	PhoneCode    string `json:"phone_code" validate:"max=10"`
	CurrencyCode string `json:"currency_code" validate:"omitempty,len=3,alpha"`
	CurrencyName string `json:"currency_name" validate:"max=50"`
	IsActive     bool   `json:"is_active"`
}

func (f CountryForm) toModel() Country {
	return Country{
		Name:         f.Name,
		ISOCode2:     f.ISOCode2,
		ISOCode3:     f.ISOCode3,
		NumericCode:  f.NumericCode,
		PhoneCode:    f.PhoneCode,
		CurrencyCode: f.CurrencyCode,
		CurrencyName: f.CurrencyName,
		IsActive:     f.IsActive,
	}
}
