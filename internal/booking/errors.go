package booking

import (
	"errors"
	"fmt"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

var (
	ErrNotFound       = errors.New("booking not found")
	ErrInvalidBooking = errors.New("invalid booking")
)

// ConflictMessage is shown to the admin who lost a concurrent transition.
const ConflictMessage = "this booking was already updated, please refresh"

// ConflictError means the booking was no longer in the expected state when
// the write was attempted. It is never retried automatically.
type ConflictError struct {
	BookingID string
	Expected  models.BookingStatus
	Actual    models.BookingStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking %s: expected status %s, found %s", e.BookingID, e.Expected, e.Actual)
}

type InvalidTransitionError struct {
	From models.BookingStatus
	To   models.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
