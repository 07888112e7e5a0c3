package products

type ProductForm struct {
	Code          string `json:"code" validate:"max=100"`
	Name          string `json:"name" validate:"required,max=300"`
	Description   string `json:"description"`
	PartNumber    string `json:"part_number" validate:"max=100"`
	Category      string `json:"category" validate:"max=100"`
	UnitOfMeasure string `json:"unit_of_measure" validate:"max=20"`
	IsSerialized  bool   `json:"is_serialized"`
	IsActive      bool   `json:"is_active"`
}

func (f ProductForm) toModel() Product {
	unit := f.UnitOfMeasure
	if unit == "" {
		unit = DefaultUnit
	}
	return Product{
		Code:          f.Code,
		Name:          f.Name,
		Description:   f.Description,
		PartNumber:    f.PartNumber,
		Category:      f.Category,
		UnitOfMeasure: unit,
		IsSerialized:  f.IsSerialized,
		IsActive:      f.IsActive,
	}
}
