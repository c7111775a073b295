package notify

import (
	"fmt"
	"strings"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

// Request asks the broker to create one notification.
type Request struct {
	Audience        string                  `json:"audience" binding:"required,max=64"`
	Kind            models.NotificationKind `json:"kind" binding:"required,notificationkind"`
	Severity        models.Severity         `json:"severity,omitempty" binding:"omitempty,severity"`
	Message         string                  `json:"message" binding:"required"`
	CausalBookingID *string                 `json:"causal_booking_id,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Audience) == "" {
		return fmt.Errorf("%w: audience is required", ErrInvalidRequest)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	if r.Severity != "" && !r.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRequest, r.Severity)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	return nil
}
