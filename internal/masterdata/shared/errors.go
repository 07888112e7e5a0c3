package shared

import (
	"fmt"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

// The masterdata taxonomy reuses the shared httpx sentinels so one
// response mapping covers every entity handler.
var (
	ErrNotFound      = httpx.ErrNotFound
	ErrDuplicate     = httpx.ErrDuplicate
	ErrValidation    = httpx.ErrValidation
	ErrInvalidID     = fmt.Errorf("invalid id: %w", httpx.ErrValidation)
	ErrRequiredField = fmt.Errorf("field is required: %w", httpx.ErrValidation)
)
