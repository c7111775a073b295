package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/surajs41/RideEasy-Rental/db"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CAS describes one conditional status write. Observed is the updated_at the
// caller read together with Expected.
type CAS struct {
	ID       string
	Expected models.BookingStatus
	Observed time.Time
	Target   models.BookingStatus
	Actor    string
}

var errNoMatch = errors.New("conditional update matched no rows")

const deleteAttempts = 3

type GormStore struct {
	db        *gorm.DB
	publisher changefeed.Publisher
	now       func() time.Time
	rows      rowLocks
}

// NewGormStore returns a store that publishes every committed mutation to
// publisher. publisher may be nil. Mutations of one booking commit and
// publish under that booking's lock, in order.
func NewGormStore(gdb *gorm.DB, publisher changefeed.Publisher) *GormStore {
	return &GormStore{db: gdb, publisher: publisher, now: db.Now}
}

func (s *GormStore) Create(ctx context.Context, b *models.Booking, actor string) error {
	defer s.rows.lock(b.ID)()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		b.CreatedAt = now
		b.UpdatedAt = now

		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		return writeEvent(tx, changefeed.OpInsert, "", *b, actor)
	})

	if err != nil {
		return err
	}

	s.publish(ctx, changefeed.OpInsert, *b)
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (models.Booking, error) {
	var b models.Booking

	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Booking{}, ErrNotFound
		}
		return models.Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}

	return b, nil
}

func (s *GormStore) List(ctx context.Context, scope changefeed.Scope) ([]models.Booking, error) {
	var bookings []models.Booking

	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if scope.UserID != "" {
		q = q.Where("subject_user_id = ?", scope.UserID)
	}

	if err := q.Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, nil
}

func (s *GormStore) CompareAndSwapStatus(ctx context.Context, cas CAS) (models.Booking, error) {
	defer s.rows.lock(cas.ID)()

	var updated models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ? AND updated_at = ?", cas.ID, cas.Expected, cas.Observed).
			UpdateColumns(map[string]interface{}{
				"status":     cas.Target,
				"updated_at": s.nextUpdatedAt(cas.Observed),
			})

		if res.Error != nil {
			return fmt.Errorf("update booking %s: %w", cas.ID, res.Error)
		}

		if res.RowsAffected == 0 {
			return errNoMatch
		}

		if err := tx.First(&updated, "id = ?", cas.ID).Error; err != nil {
			return fmt.Errorf("reload booking %s: %w", cas.ID, err)
		}

		return writeEvent(tx, changefeed.OpUpdate, cas.Expected, updated, cas.Actor)
	})

	if errors.Is(err, errNoMatch) {
		return models.Booking{}, s.conflict(ctx, cas)
	}

	if err != nil {
		return models.Booking{}, err
	}

	s.publish(ctx, changefeed.OpUpdate, updated)
	return updated, nil
}

// SoftDelete marks the booking deleted and advances updated_at, so the
// delete orders after every earlier change of the row.
func (s *GormStore) SoftDelete(ctx context.Context, id, actor string) (models.Booking, error) {
	defer s.rows.lock(id)()

	var (
		b   models.Booking
		err error
	)

	// another instance may write the row between our read and the update
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		b, err = s.softDeleteOnce(ctx, id, actor)
		if !errors.Is(err, errNoMatch) {
			break
		}
	}

	if errors.Is(err, errNoMatch) {
		return models.Booking{}, fmt.Errorf("delete booking %s: row kept changing", id)
	}

	if err != nil {
		return models.Booking{}, err
	}

	s.publish(ctx, changefeed.OpDelete, b)
	return b, nil
}

func (s *GormStore) softDeleteOnce(ctx context.Context, id, actor string) (models.Booking, error) {
	var b models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get booking %s: %w", id, err)
		}

		next := s.nextUpdatedAt(b.UpdatedAt)
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND updated_at = ?", id, b.UpdatedAt).
			UpdateColumns(map[string]interface{}{
				"deleted_at": next,
				"updated_at": next,
			})

		if res.Error != nil {
			return fmt.Errorf("delete booking %s: %w", id, res.Error)
		}

		if res.RowsAffected == 0 {
			return errNoMatch
		}

		b.UpdatedAt = next
		b.DeletedAt = gorm.DeletedAt{Time: next, Valid: true}

		return writeEvent(tx, changefeed.OpDelete, b.Status, b, actor)
	})

	if err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (s *GormStore) History(ctx context.Context, id string) ([]models.BookingEvent, error) {
	var events []models.BookingEvent

	if err := s.db.WithContext(ctx).Where("booking_id = ?", id).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("booking history %s: %w", id, err)
	}

	return events, nil
}

// ListEndedConfirmed returns confirmed bookings whose rental period ended before t.
func (s *GormStore) ListEndedConfirmed(ctx context.Context, t time.Time) ([]models.Booking, error) {
	var bookings []models.Booking

	err := s.db.WithContext(ctx).
		Where("status = ? AND end_at < ?", models.BookingConfirmed, t).
		Order("end_at ASC").
		Find(&bookings).Error

	if err != nil {
		return nil, fmt.Errorf("list ended bookings: %w", err)
	}

	return bookings, nil
}

// updated_at must strictly increase even when the clock has not moved
func (s *GormStore) nextUpdatedAt(observed time.Time) time.Time {
	next := s.now()
	if !next.After(observed) {
		next = observed.Add(time.Microsecond)
	}
	return next
}

func (s *GormStore) conflict(ctx context.Context, cas CAS) error {
	current, err := s.Get(ctx, cas.ID)
	if err != nil {
		return err
	}
	return &ConflictError{BookingID: cas.ID, Expected: cas.Expected, Actual: current.Status}
}

func (s *GormStore) publish(ctx context.Context, op changefeed.Op, b models.Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, changefeed.Change{Op: op, Booking: b}); err != nil {
		log.Printf("[booking] publish %s change for %s: %v", op, b.ID, err)
	}
}

func writeEvent(tx *gorm.DB, op changefeed.Op, from models.BookingStatus, b models.Booking, actor string) error {
	snapshot, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("snapshot booking %s: %w", b.ID, err)
	}

	event := models.BookingEvent{
		BookingID:  b.ID,
		Op:         string(op),
		FromStatus: from,
		ToStatus:   b.Status,
		Actor:      actor,
		Snapshot:   datatypes.JSON(snapshot),
	}

	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("record booking event: %w", err)
	}

	return nil
}
