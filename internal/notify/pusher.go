package notify

import (
	"context"

	"github.com/pusher/pusher-http-go/v5"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

const pusherEvent = "notification"

type Triggerer interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// PusherFanout relays notifications to the hosted pusher channel of the audience.
type PusherFanout struct {
	client Triggerer
}

func NewPusherClient(appID, key, secret, cluster string) *pusher.Client {
	return &pusher.Client{
		AppID:   appID,
		Key:     key,
		Secret:  secret,
		Cluster: cluster,
		Secure:  true,
	}
}

func NewPusherFanout(client Triggerer) *PusherFanout {
	return &PusherFanout{client: client}
}

func PusherChannel(audience string) string {
	return "private-notifications-" + audience
}

func (p *PusherFanout) Deliver(_ context.Context, n models.Notification) error {
	return p.client.Trigger(PusherChannel(n.Audience), pusherEvent, n)
}
