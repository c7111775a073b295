package types

import (
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

const ContextUserKey = "user"

const (
	MessageConnected    = "connected"
	MessageNotification = "notification"
	MessageChange       = "change"
)

// SocketMessage is the envelope of every frame sent on the websocket channels.
type SocketMessage struct {
	Type         string               `json:"type"`
	Message      string               `json:"message,omitempty"`
	Audience     string               `json:"audience,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Change       *changefeed.Change   `json:"change,omitempty"`
}
