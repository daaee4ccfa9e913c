package admission

import (
	"errors"
	"fmt"

	"github.com/festlabs/festreg/internal/domain/event"
)

var (
	ErrCategoryRequired = errors.New("registration category is required for this event")
	ErrUnknownCategory  = errors.New("unknown registration category")
)

// ResolveFee returns the amount owed for registering, in integer currency
// units. Events that define categories require one; flat-fee events ignore the
// category argument entirely (a zero fee means no payment step). Pure.
func ResolveFee(e event.Event, category string) (int64, error) {
	if len(e.Categories) == 0 {
		return e.RegistrationFee, nil
	}

	if category == "" {
		return 0, ErrCategoryRequired
	}

	fee, ok := e.CategoryFee(category)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	return fee, nil
}
