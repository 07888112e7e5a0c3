package shared

import (
	"errors"
	"fmt"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers every login failure mode with one
	// message so responses never reveal which part failed.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", httpx.ErrUnauthorized)
)
