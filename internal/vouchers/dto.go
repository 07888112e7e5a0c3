package vouchers

import "time"

// DetailForm is one requested voucher line. Lines are numbered by
// position, starting at one.
type DetailForm struct {
	ProductID       *int64  `json:"product_id"`
	ItemName        string  `json:"item_name" validate:"required,max=300"`
	ItemDescription string  `json:"item_description"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	Unit            string  `json:"unit" validate:"max=20"`
	SerialNumber    string  `json:"serial_number" validate:"max=100"`
	Notes           string  `json:"notes"`
}

// CreateForm is the payload for registering a voucher.
type CreateForm struct {
	Type                string       `json:"type" validate:"required,oneof=ENTRY EXIT"`
	CompanyID           int64        `json:"company_id" validate:"required,gt=0"`
	OriginBranchID      *int64       `json:"origin_branch_id"`
	DestinationBranchID *int64       `json:"destination_branch_id"`
	DeliveredByID       int64        `json:"delivered_by_id" validate:"required,gt=0"`
	WithReturn          bool         `json:"with_return"`
	EstimatedReturnDate *time.Time   `json:"estimated_return_date"`
	Notes               string       `json:"notes"`
	InternalNotes       string       `json:"internal_notes"`
	Details             []DetailForm `json:"details" validate:"required,min=1,max=20,dive"`
}

// UpdateForm edits a pending voucher. Type, company, and folio are
// immutable after creation.
type UpdateForm struct {
	OriginBranchID      *int64       `json:"origin_branch_id"`
	DestinationBranchID *int64       `json:"destination_branch_id"`
	DeliveredByID       int64        `json:"delivered_by_id" validate:"required,gt=0"`
	WithReturn          bool         `json:"with_return"`
	EstimatedReturnDate *time.Time   `json:"estimated_return_date"`
	Notes               string       `json:"notes"`
	InternalNotes       string       `json:"internal_notes"`
	Details             []DetailForm `json:"details" validate:"required,min=1,max=20,dive"`
}

// ApproveForm carries the approving signature.
type ApproveForm struct {
	ApprovedByID int64 `json:"approved_by_id" validate:"required,gt=0"`
}

// CancelForm carries the cancellation reason.
type CancelForm struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// LineCheck validates one voucher line during a scan.
type LineCheck struct {
	LineNumber int    `json:"line_number" validate:"required,gte=1,lte=20"`
	OK         bool   `json:"ok"`
	Notes      string `json:"notes"`
}

// ScanExitForm is the checker's exit validation payload. Every line
// must be checked; material leaves regardless of the outcome.
type ScanExitForm struct {
	ScannedByID  int64       `json:"scanned_by_id" validate:"required,gt=0"`
	Lines        []LineCheck `json:"lines" validate:"required,min=1,dive"`
	Observations string      `json:"observations"`
}

// ScanEntryForm is the receiving confirmation payload. Every line must
// be checked; the voucher only closes when all lines are ok.
type ScanEntryForm struct {
	ReceivedByID int64       `json:"received_by_id" validate:"required,gt=0"`
	Lines        []LineCheck `json:"lines" validate:"required,min=1,dive"`
	Damaged      bool        `json:"damaged"`
	Observations string      `json:"observations"`
}

// ListFilters narrows voucher listings and searches.
type ListFilters struct {
	Search    string
	CompanyID *int64
	Status    *Status
	Type      *Type
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// Offset computes the SQL offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Logs pairs the at-most-one scan logs of a voucher.
type Logs struct {
	OutLog   *OutLog   `json:"out_log"`
	EntryLog *EntryLog `json:"entry_log"`
}

func (f DetailForm) toModel(line int) Detail {
	unit := f.Unit
	if unit == "" {
		unit = "PZA"
	}
	return Detail{
		ProductID:       f.ProductID,
		LineNumber:      line,
		ItemName:        f.ItemName,
		ItemDescription: f.ItemDescription,
		Quantity:        f.Quantity,
		Unit:            unit,
		SerialNumber:    f.SerialNumber,
		Notes:           f.Notes,
	}
}

func detailsFromForms(forms []DetailForm) []Detail {
	details := make([]Detail, len(forms))
	for i, f := range forms {
		details[i] = f.toModel(i + 1)
	}
	return details
}
