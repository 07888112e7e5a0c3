package companies

import (
	"fmt"
	"strings"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

func (s *Service) validate(c Company) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(c.TIN) == "" {
		return fmt.Errorf("%w: tin", shared.ErrRequiredField)
	}
	// The folio prefix needs at least three characters.
	if len(strings.TrimSpace(c.TIN)) < 3 {
		return fmt.Errorf("%w: tin must be at least 3 characters", shared.ErrValidation)
	}
	if strings.TrimSpace(c.TaxSystem) == "" {
		return fmt.Errorf("%w: tax_system", shared.ErrRequiredField)
	}
	return nil
}
