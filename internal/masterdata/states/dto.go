package states

type StateForm struct {
	Name      string `json:"name" validate:"required,max=200"`
	Code      string `json:"code" validate:"max=10"`
	CountryID int64  `json:"country_id" validate:"required,gt=0"`
	IsActive  bool   `json:"is_active"`
}

func (f StateForm) toModel() State {
	return State{
		Name:      f.Name,
		Code:      f.Code,
		CountryID: f.CountryID,
		IsActive:  f.IsActive,
	}
}
