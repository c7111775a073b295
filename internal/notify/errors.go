package notify

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("notification not found")
	ErrInvalidRequest = errors.New("invalid notification request")
	ErrQueueFull      = errors.New("notification queue is full")
)

// DeliveryError is a failed live fan-out of a notification that is already
// persisted. Clients recover it through catch-up, so it is only logged.
type DeliveryError struct {
	Backend        string
	NotificationID string
	Err            error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s via %s: %v", e.NotificationID, e.Backend, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
