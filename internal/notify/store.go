package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/surajs41/RideEasy-Rental/internal/models"
	"gorm.io/gorm"
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByAudience(ctx context.Context, audience string) ([]models.Notification, error)
	Get(ctx context.Context, id string) (models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *GormStore) ListByAudience(ctx context.Context, audience string) ([]models.Notification, error) {
	var notifications []models.Notification

	err := s.db.WithContext(ctx).
		Where("audience = ?", audience).
		Order("created_at DESC").
		Order("id DESC").
		Find(&notifications).Error

	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", audience, err)
	}

	return notifications, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (models.Notification, error) {
	var n models.Notification

	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, fmt.Errorf("get notification %s: %w", id, err)
	}

	return n, nil
}

// MarkRead sets is_read. Marking an already read notification is a no-op.
func (s *GormStore) MarkRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		UpdateColumn("is_read", true)

	if res.Error != nil {
		return fmt.Errorf("mark notification %s read: %w", id, res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	return nil
}
