package changefeed

import (
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one committed row mutation of the booking store.
type Change struct {
	Op      Op             `json:"op"`
	Booking models.Booking `json:"booking"`
}

// Scope selects which rows a subscriber sees. An empty UserID means all rows.
type Scope struct {
	UserID string
}

func AllBookings() Scope {
	return Scope{}
}

func UserBookings(userID string) Scope {
	return Scope{UserID: userID}
}

func (s Scope) Matches(c Change) bool {
	return s.UserID == "" || s.UserID == c.Booking.SubjectUserID
}
