package timer

import (
	"errors"
	"fmt"

	"github.com/focushive/sessiond/internal/models"
)

// ErrAccessDenied is returned when the requester does not own the
// session an operation targets.
var ErrAccessDenied = errors.New("session belongs to a different user")

// InvalidTransitionError reports an operation attempted from a status it
// is not defined for. Terminal states are sticky: nothing transitions
// out of COMPLETED, CANCELLED or EXPIRED.
type InvalidTransitionError struct {
	ID   string
	From models.Status
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"cannot %s session %s while it is %s",
		e.Op,
		e.ID,
		e.From,
	)
}

// ValidationError reports input outside the allowed range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
