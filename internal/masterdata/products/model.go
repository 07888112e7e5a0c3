package products

import (
	"time"
)

// Product represents a movable material item referenced by voucher lines.
// UsageCount tracks how often the product appears on vouchers.
type Product struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PartNumber    string    `json:"part_number,omitempty"`
	Category      string    `json:"category,omitempty"`
	UnitOfMeasure string    `json:"unit_of_measure"`
	IsSerialized  bool      `json:"is_serialized"`
	UsageCount    int       `json:"usage_count"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultUnit is applied when a product form omits the unit of measure.
const DefaultUnit = "PZA"
