package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

var BookingStatuses = []BookingStatus{
	BookingPending,
	BookingConfirmed,
	BookingRejected,
	BookingCancelled,
	BookingCompleted,
}

func (s BookingStatus) Valid() bool {
	for _, status := range BookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Booking struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubjectUserID string         `gorm:"type:varchar(64);not null;index" json:"subject_user_id"`
	ResourceID    string         `gorm:"type:varchar(64);not null" json:"resource_id"`
	StartAt       time.Time      `gorm:"not null" json:"start_at"`
	EndAt         time.Time      `gorm:"not null" json:"end_at"`
	Amount        int64          `gorm:"not null" json:"amount"` // smallest currency unit
	Status        BookingStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
