package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

func TestHubDropsLaggingSubscriber(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Subscribe("alice")
	fast := hub.Subscribe("alice")

	ctx := context.Background()
	_ = hub.Deliver(ctx, models.Notification{ID: "n1", Audience: "alice"})
	<-fast.Notifications()
	_ = hub.Deliver(ctx, models.Notification{ID: "n2", Audience: "alice"})

	assert.Equal(t, 1, hub.Count("alice"))
	assert.Equal(t, "n2", (<-fast.Notifications()).ID)

	assert.Equal(t, "n1", (<-slow.Notifications()).ID)
	_, ok := <-slow.Notifications()
	assert.False(t, ok)

	slow.Close()
	fast.Close()
	assert.Equal(t, 0, hub.Count("alice"))
}

func TestHubCloseEndsEveryStream(t *testing.T) {
	hub := NewHub(0)
	a := hub.Subscribe("admin")
	b := hub.Subscribe("bob")

	hub.Close()

	_, okA := <-a.Notifications()
	_, okB := <-b.Notifications()
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Equal(t, "admin", a.Audience())

	a.Close()
}
