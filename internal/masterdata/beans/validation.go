package beans

import (
	"fmt"
	"strings"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

func (s *Service) validate(b Bean) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if strings.TrimSpace(b.Origin) == "" {
		return fmt.Errorf("%w: origin", shared.ErrRequiredField)
	}
	if b.StockKg < 0 {
		return fmt.Errorf("%w: stock_kg must not be negative", shared.ErrValidation)
	}
	if b.CostPerKg < 0 {
		return fmt.Errorf("%w: cost_per_kg must not be negative", shared.ErrValidation)
	}
	return nil
}
