package models

import (
	"time"
)

// AdminAudience addresses the shared admin mailbox instead of a single user.
const AdminAudience = "admin"

type NotificationKind string

const (
	KindBooking NotificationKind = "booking"
	KindPayment NotificationKind = "payment"
	KindOffer   NotificationKind = "offer"
	KindGeneral NotificationKind = "general"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindBooking, KindPayment, KindOffer, KindGeneral:
		return true
	}
	return false
}

// Severity is a presentation hint fixed at creation time. It is not a workflow state.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityApproved Severity = "approved"
	SeverityRejected Severity = "rejected"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityApproved, SeverityRejected:
		return true
	}
	return false
}

type Notification struct {
	ID              string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Audience        string           `gorm:"type:varchar(64);not null;index:idx_notifications_audience_created,priority:1" json:"audience"`
	Kind            NotificationKind `gorm:"type:varchar(16);not null" json:"kind"`
	Severity        Severity         `gorm:"type:varchar(16);not null;default:'info'" json:"severity"`
	Message         string           `gorm:"type:text;not null" json:"message"`
	IsRead          bool             `gorm:"not null;default:false" json:"is_read"`
	CausalBookingID *string          `gorm:"type:varchar(36);index" json:"causal_booking_id,omitempty"`
	CreatedAt       time.Time        `gorm:"not null;index;index:idx_notifications_audience_created,priority:2" json:"created_at"`
}
