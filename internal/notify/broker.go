package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surajs41/RideEasy-Rental/db"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

const deliveryTimeout = 10 * time.Second

// Fanout delivers a persisted notification to live subscribers.
type Fanout interface {
	Deliver(ctx context.Context, n models.Notification) error
}

type Broker struct {
	store   Store
	hub     *Hub
	fanouts map[string]Fanout
	wg      sync.WaitGroup
}

// NewBroker serves subscriptions from hub and delivers every emitted
// notification through fanouts. With no fanouts the hub delivers directly.
func NewBroker(store Store, hub *Hub, fanouts map[string]Fanout) *Broker {
	if len(fanouts) == 0 {
		fanouts = map[string]Fanout{"hub": hub}
	}
	return &Broker{store: store, hub: hub, fanouts: fanouts}
}

// Emit persists the notification and returns once it is durable. Live
// delivery happens afterwards.
func (b *Broker) Emit(ctx context.Context, req Request) (models.Notification, error) {
	if err := req.Validate(); err != nil {
		return models.Notification{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Notification{}, fmt.Errorf("notification id: %w", err)
	}

	severity := req.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}

	n := models.Notification{
		ID:              id.String(),
		Audience:        req.Audience,
		Kind:            req.Kind,
		Severity:        severity,
		Message:         req.Message,
		CausalBookingID: req.CausalBookingID,
		CreatedAt:       db.Now(),
	}

	if err := b.store.Create(ctx, &n); err != nil {
		return models.Notification{}, err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.deliver(context.WithoutCancel(ctx), n)
	}()

	return n, nil
}

func (b *Broker) deliver(ctx context.Context, n models.Notification) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	for name, fanout := range b.fanouts {
		if err := fanout.Deliver(ctx, n); err != nil {
			log.Printf("[broker] %v", &DeliveryError{Backend: name, NotificationID: n.ID, Err: err})
		}
	}
}

// Fetch returns every stored notification for audience, newest first.
func (b *Broker) Fetch(ctx context.Context, audience string) ([]models.Notification, error) {
	return b.store.ListByAudience(ctx, audience)
}

func (b *Broker) Get(ctx context.Context, id string) (models.Notification, error) {
	return b.store.Get(ctx, id)
}

func (b *Broker) MarkRead(ctx context.Context, id string) error {
	return b.store.MarkRead(ctx, id)
}

func (b *Broker) Subscribe(audience string) *Subscription {
	return b.hub.Subscribe(audience)
}

// Wait blocks until in-flight deliveries finish.
func (b *Broker) Wait() {
	b.wg.Wait()
}
