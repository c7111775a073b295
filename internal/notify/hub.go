package notify

import (
	"context"
	"log"
	"sync"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

const defaultBuffer = 64

// Hub fans notifications out to the live subscriptions of this process,
// keyed by audience.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

type Subscription struct {
	hub      *Hub
	audience string
	ch       chan models.Notification
	once     sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(audience string) *Subscription {
	sub := &Subscription{
		hub:      h,
		audience: audience,
		ch:       make(chan models.Notification, h.buffer),
	}

	h.mu.Lock()
	if h.subs[audience] == nil {
		h.subs[audience] = make(map[*Subscription]struct{})
	}
	h.subs[audience][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (s *Subscription) Audience() string {
	return s.audience
}

// Notifications is closed when the subscription is closed or dropped.
func (s *Subscription) Notifications() <-chan models.Notification {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if subs, ok := s.hub.subs[s.audience]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.subs, s.audience)
			}
		}
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Deliver hands n to every subscription of its audience without blocking.
func (h *Hub) Deliver(_ context.Context, n models.Notification) error {
	var lagging []*Subscription

	h.mu.RLock()
	for sub := range h.subs[n.Audience] {
		select {
		case sub.ch <- n:
		default:
			lagging = append(lagging, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range lagging {
		log.Printf("[hub] dropping lagging subscriber for %s", sub.audience)
		sub.Close()
	}

	return nil
}

func (h *Hub) Count(audience string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[audience])
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Subscription
	for _, subs := range h.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range all {
		sub.Close()
	}
}
