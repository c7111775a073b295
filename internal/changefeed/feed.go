package changefeed

import (
	"context"
	"log"
	"sync"
)

// Publisher receives every committed booking mutation.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Feed fans committed booking changes out to in-process subscribers.
// Callers must not publish two changes of one row concurrently: the booking
// store publishes while holding the row's lock, so a row's changes arrive in
// commit order, and each subscriber's buffer keeps that order.
type Feed struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

type Subscription struct {
	Scope Scope

	feed   *Feed
	events chan Change
	once   sync.Once
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

func (f *Feed) Subscribe(scope Scope) *Subscription {
	sub := &Subscription{
		Scope:  scope,
		feed:   f,
		events: make(chan Change, f.buffer),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub
}

// Events is closed when the subscription is closed or dropped for falling behind.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.events)
		s.feed.mu.Unlock()
	})
}

func (f *Feed) Publish(_ context.Context, c Change) error {
	var lagging []*Subscription

	f.mu.RLock()
	for sub := range f.subs {
		if !sub.Scope.Matches(c) {
			continue
		}
		select {
		case sub.events <- c:
		default:
			lagging = append(lagging, sub)
		}
	}
	f.mu.RUnlock()

	// dropped subscribers refetch the list when they reconnect
	for _, sub := range lagging {
		log.Printf("[feed] dropping lagging subscriber (scope=%q) at %s %s", sub.Scope.UserID, c.Op, c.Booking.ID)
		sub.Close()
	}

	return nil
}

// DropAll closes every subscription, forcing clients to reconnect and refetch.
func (f *Feed) DropAll() {
	f.mu.RLock()
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
