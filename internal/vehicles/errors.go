package vehicles

import (
	"errors"
	"fmt"

	"github.com/livinlefevreloca/wotdaily/internal/db"
	"github.com/livinlefevreloca/wotdaily/internal/wargaming"
)

// Precondition violations. They are logged and leave Run Status untouched.
var (
	ErrRunFailed        = errors.New("vehicles: run has already failed")
	ErrVehicleNotOwned  = errors.New("vehicles: vehicle is not owned by the account")
	ErrVehicleNotSynced = errors.New("vehicles: vehicle has no reference row")
)

// StoreError reports a failed write to the persistent store
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vehicles: %s: store error: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// errorAttrs returns log attributes describing a run failure. Every failure
// is one of the gateway's RequestError or ValidationError, or a StoreError.
func errorAttrs(err error) []any {
	var (
		reqErr   *wargaming.RequestError
		valErr   *wargaming.ValidationError
		storeErr *StoreError
	)

	switch {
	case errors.As(err, &reqErr):
		return []any{
			"kind", "request",
			"operation", reqErr.Operation,
			"code", reqErr.Code,
			"field", reqErr.Field,
			"message", reqErr.Message,
			"value", reqErr.Value,
		}
	case errors.As(err, &valErr):
		return []any{
			"kind", "validation",
			"operation", valErr.Operation,
			"message", valErr.Message,
		}
	case errors.As(err, &storeErr):
		return []any{
			"kind", "store",
			"operation", storeErr.Operation,
			"constraint", constraintOf(storeErr.Err),
			"error", storeErr.Err,
		}
	default:
		return []any{
			"kind", "unclassified",
			"error", err,
		}
	}
}

// constraintOf names the integrity constraint a store error violated, if any
func constraintOf(err error) string {
	switch {
	case db.IsForeignKey(err):
		return "foreign_key"
	case db.IsDuplicate(err):
		return "duplicate"
	default:
		return "none"
	}
}
