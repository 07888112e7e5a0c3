// Package vouchers implements material-movement vouchers, the central
// entity of the system. A voucher moves through a fixed status machine
// and carries up to twenty line items. Exit and entry scans append
// one-shot audit logs and drive the final transitions.
package vouchers

import (
	"fmt"
	"time"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

var (
	ErrNotFound   = fmt.Errorf("vouchers: %w", httpx.ErrNotFound)
	ErrValidation = fmt.Errorf("vouchers: %w", httpx.ErrValidation)
	ErrConflict   = fmt.Errorf("vouchers: %w", httpx.ErrConflict)
)

// Type distinguishes material entering from material leaving.
type Type string

const (
	TypeEntry Type = "ENTRY"
	TypeExit  Type = "EXIT"
)

// FolioCode is the type segment used in folio numbers.
func (t Type) FolioCode() string {
	if t == TypeEntry {
		return "ENT"
	}
	return "SAL"
}

// ParseType validates a raw voucher type.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeEntry, TypeExit:
		return Type(raw), nil
	}
	return "", fmt.Errorf("%w: unknown voucher type %q", ErrValidation, raw)
}

// Status is the voucher lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusOverdue   Status = "OVERDUE"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every lifecycle state in declaration order.
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusInTransit, StatusOverdue, StatusClosed, StatusCancelled}
}

// Types lists the voucher types.
func Types() []Type {
	return []Type{TypeEntry, TypeExit}
}

// ParseStatus validates a raw status.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses() {
		if s == Status(raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown voucher status %q", ErrValidation, raw)
}

func (s Status) oneOf(allowed ...Status) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// MaxDetailLines bounds the line items per voucher.
const MaxDetailLines = 20

// Voucher is a material-movement voucher. The folio is unique and
// immutable once assigned.
type Voucher struct {
	ID                  int64      `json:"id"`
	PublicID            string     `json:"public_id"`
	Folio               string     `json:"folio"`
	Type                Type       `json:"type"`
	Status              Status     `json:"status"`
	CompanyID           int64      `json:"company_id"`
	OriginBranchID      *int64     `json:"origin_branch_id,omitempty"`
	DestinationBranchID *int64     `json:"destination_branch_id,omitempty"`
	DeliveredByID       int64      `json:"delivered_by_id"`
	ApprovedByID        *int64     `json:"approved_by_id,omitempty"`
	ReceivedByID        *int64     `json:"received_by_id,omitempty"`
	WithReturn          bool       `json:"with_return"`
	EstimatedReturnDate *time.Time `json:"estimated_return_date,omitempty"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	InternalNotes       string     `json:"internal_notes,omitempty"`
	CreatedBy           int64      `json:"created_by"`
	UpdatedBy           int64      `json:"updated_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Details []Detail `json:"details,omitempty"`
}

// Detail is one voucher line. Item name and quantity are mandatory
// even when the line references a catalog product.
type Detail struct {
	ID              int64   `json:"id"`
	VoucherID       int64   `json:"voucher_id"`
	ProductID       *int64  `json:"product_id,omitempty"`
	LineNumber      int     `json:"line_number"`
	ItemName        string  `json:"item_name"`
	ItemDescription string  `json:"item_description,omitempty"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	SerialNumber    string  `json:"serial_number,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// ValidationStatus grades an exit scan.
type ValidationStatus string

const (
	ValidationApproved    ValidationStatus = "APPROVED"
	ValidationObservation ValidationStatus = "OBSERVATION"
)

// OutLog records the checker's exit validation. At most one per
// voucher; material always leaves, observations or not.
type OutLog struct {
	ID               int64            `json:"id"`
	VoucherID        int64            `json:"voucher_id"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	ScannedByID      int64            `json:"scanned_by_id"`
	Observations     string           `json:"observations,omitempty"`
	CreatedBy        int64            `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
}

// EntryStatus grades a physical receipt.
type EntryStatus string

const (
	EntryComplete   EntryStatus = "COMPLETE"
	EntryIncomplete EntryStatus = "INCOMPLETE"
	EntryDamaged    EntryStatus = "DAMAGED"
)

// EntryLog records the receiving signature. At most one per voucher.
// A non-complete receipt keeps the voucher open as OVERDUE.
type EntryLog struct {
	ID           int64       `json:"id"`
	VoucherID    int64       `json:"voucher_id"`
	EntryStatus  EntryStatus `json:"entry_status"`
	ReceivedByID int64       `json:"received_by_id"`
	MissingItems string      `json:"missing_items,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	CreatedBy    int64       `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Statistics aggregates voucher counts.
type Statistics struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	ByType          map[Type]int   `json:"by_type"`
	PendingApproval int            `json:"pending_approval"`
	InTransit       int            `json:"in_transit"`
	Overdue         int            `json:"overdue"`
}
