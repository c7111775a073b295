package models

import (
	"time"

	"gorm.io/datatypes"
)

type BookingEvent struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID  string         `gorm:"type:varchar(36);not null;index" json:"booking_id"`
	Op         string         `gorm:"type:varchar(8);not null" json:"op"`
	FromStatus BookingStatus  `gorm:"type:varchar(16)" json:"from_status,omitempty"`
	ToStatus   BookingStatus  `gorm:"type:varchar(16)" json:"to_status,omitempty"`
	Actor      string         `gorm:"type:varchar(64)" json:"actor"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}
