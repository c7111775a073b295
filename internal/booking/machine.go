package booking

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
)

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingRejected},
	models.BookingConfirmed: {models.BookingCancelled, models.BookingCompleted},
}

func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SeverityFor is the presentation hint attached to the notification a
// transition into target produces.
func SeverityFor(target models.BookingStatus) models.Severity {
	switch target {
	case models.BookingConfirmed:
		return models.SeverityApproved
	case models.BookingRejected:
		return models.SeverityRejected
	}
	return models.SeverityInfo
}

func messageFor(b models.Booking) string {
	switch b.Status {
	case models.BookingConfirmed:
		return "Your booking was approved!"
	case models.BookingRejected:
		return "Sorry, your booking was rejected."
	case models.BookingCancelled:
		return "Your booking was cancelled."
	case models.BookingCompleted:
		return "Your ride is complete. Thanks for riding with RideEasy!"
	}
	return fmt.Sprintf("Your booking is now %s.", b.Status)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req notify.Request) error
}

type Store interface {
	Create(ctx context.Context, b *models.Booking, actor string) error
	Get(ctx context.Context, id string) (models.Booking, error)
	List(ctx context.Context, scope changefeed.Scope) ([]models.Booking, error)
	CompareAndSwapStatus(ctx context.Context, cas CAS) (models.Booking, error)
	SoftDelete(ctx context.Context, id, actor string) (models.Booking, error)
	History(ctx context.Context, id string) ([]models.BookingEvent, error)
}

// Machine is the only writer of booking status.
type Machine struct {
	store Store
	queue Enqueuer
}

func NewMachine(store Store, queue Enqueuer) *Machine {
	return &Machine{store: store, queue: queue}
}

func (m *Machine) Store() Store {
	return m.store
}

// Create records a checkout as a pending booking and tells the admin pool about it.
func (m *Machine) Create(ctx context.Context, b models.Booking, actor string) (models.Booking, error) {
	if strings.TrimSpace(b.SubjectUserID) == "" || strings.TrimSpace(b.ResourceID) == "" {
		return models.Booking{}, fmt.Errorf("%w: subject and resource are required", ErrInvalidBooking)
	}
	// the owner's audience is its user id, which must not alias the admin pool
	if b.SubjectUserID == models.AdminAudience {
		return models.Booking{}, fmt.Errorf("%w: %q is not a valid subject", ErrInvalidBooking, b.SubjectUserID)
	}
	if !b.EndAt.After(b.StartAt) {
		return models.Booking{}, fmt.Errorf("%w: end_at must be after start_at", ErrInvalidBooking)
	}
	if b.Amount < 0 {
		return models.Booking{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidBooking)
	}

	b.ID = uuid.NewString()
	b.Status = models.BookingPending

	if err := m.store.Create(ctx, &b, actor); err != nil {
		return models.Booking{}, err
	}

	id := b.ID
	m.enqueue(ctx, notify.Request{
		Audience:        models.AdminAudience,
		Kind:            models.KindBooking,
		Severity:        models.SeverityInfo,
		Message:         fmt.Sprintf("New booking request for %s from %s", b.ResourceID, b.SubjectUserID),
		CausalBookingID: &id,
	})

	return b, nil
}

// Transition moves a booking from expected to target. It fails fast with a
// ConflictError when another writer got there first.
func (m *Machine) Transition(ctx context.Context, id string, expected, target models.BookingStatus, actor string) (models.Booking, error) {
	if !CanTransition(expected, target) {
		return models.Booking{}, &InvalidTransitionError{From: expected, To: target}
	}

	current, err := m.store.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}

	if current.Status != expected {
		return models.Booking{}, &ConflictError{BookingID: id, Expected: expected, Actual: current.Status}
	}

	updated, err := m.store.CompareAndSwapStatus(ctx, CAS{
		ID:       id,
		Expected: expected,
		Observed: current.UpdatedAt,
		Target:   target,
		Actor:    actor,
	})
	if err != nil {
		return models.Booking{}, err
	}

	log.Printf("[booking] %s %s -> %s by %s", id, expected, target, actor)

	bookingID := updated.ID
	m.enqueue(ctx, notify.Request{
		Audience:        updated.SubjectUserID,
		Kind:            models.KindBooking,
		Severity:        SeverityFor(target),
		Message:         messageFor(updated),
		CausalBookingID: &bookingID,
	})

	return updated, nil
}

func (m *Machine) Delete(ctx context.Context, id, actor string) error {
	if _, err := m.store.SoftDelete(ctx, id, actor); err != nil {
		return err
	}

	log.Printf("[booking] %s deleted by %s", id, actor)
	return nil
}

// the transition is already committed, so a lost notification is only logged
func (m *Machine) enqueue(ctx context.Context, req notify.Request) {
	if m.queue == nil {
		return
	}
	if err := m.queue.Enqueue(ctx, req); err != nil {
		log.Printf("[booking] enqueue notification for %s failed: %v", req.Audience, err)
	}
}
