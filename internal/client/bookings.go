package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/types"
)

// BookingView is a live booking list driven by the change feed. It is the
// only place a client reads booking status from.
type BookingView struct {
	mu   sync.RWMutex
	rows []models.Booking
	// deleted holds the updated_at of every delete seen, so a late change
	// for a deleted row never brings it back
	deleted map[string]time.Time
}

func NewBookingView() *BookingView {
	return &BookingView{deleted: make(map[string]time.Time)}
}

// Reset replaces the list with a freshly fetched baseline. Tombstones are
// kept: changes buffered before the baseline may still arrive.
func (v *BookingView) Reset(bookings []models.Booking) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rows = append(v.rows[:0:0], bookings...)
}

func (v *BookingView) Apply(c changefeed.Change) {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx := v.index(c.Booking.ID)

	switch c.Op {
	case changefeed.OpInsert, changefeed.OpUpdate:
		if at, ok := v.deleted[c.Booking.ID]; ok && !c.Booking.UpdatedAt.After(at) {
			return
		}
		if idx < 0 {
			// missed the insert, or an insert racing the baseline
			v.rows = append([]models.Booking{c.Booking}, v.rows...)
			return
		}
		// changes buffered while the baseline was fetched may be older than it
		if c.Booking.UpdatedAt.Before(v.rows[idx].UpdatedAt) {
			return
		}
		v.rows[idx] = c.Booking
	case changefeed.OpDelete:
		if idx >= 0 {
			v.rows = append(v.rows[:idx], v.rows[idx+1:]...)
		}
		if at, ok := v.deleted[c.Booking.ID]; !ok || c.Booking.UpdatedAt.After(at) {
			v.deleted[c.Booking.ID] = c.Booking.UpdatedAt
		}
	}
}

func (v *BookingView) List() []models.Booking {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]models.Booking, len(v.rows))
	copy(out, v.rows)
	return out
}

func (v *BookingView) Get(id string) (models.Booking, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if idx := v.index(id); idx >= 0 {
		return v.rows[idx], true
	}
	return models.Booking{}, false
}

func (v *BookingView) index(id string) int {
	for i, b := range v.rows {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// BookingFeed keeps a BookingView live: open the change stream, fetch the
// baseline, then apply changes. Reconnects repeat the whole sequence.
type BookingFeed struct {
	api     *API
	view    *BookingView
	backoff *Backoff

	OnSync   func(rows int)
	OnChange func(c changefeed.Change)
}

func NewBookingFeed(api *API, view *BookingView) *BookingFeed {
	return &BookingFeed{api: api, view: view, backoff: DefaultBackoff()}
}

func (f *BookingFeed) View() *BookingView {
	return f.view
}

func (f *BookingFeed) Run(ctx context.Context) error {
	for {
		synced, err := f.connectOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if synced {
			f.backoff.Reset()
		}

		wait := f.backoff.Next()
		log.Printf("[bookings] disconnected (%v), reconnecting in %s", err, wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (f *BookingFeed) Refresh(ctx context.Context) error {
	bookings, err := f.api.ListBookings(ctx)
	if err != nil {
		return fmt.Errorf("refetch bookings: %w", err)
	}

	f.view.Reset(bookings)
	if f.OnSync != nil {
		f.OnSync(len(bookings))
	}
	return nil
}

func (f *BookingFeed) connectOnce(ctx context.Context) (bool, error) {
	conn, err := f.api.Dial(ctx, "/ws/bookings", nil)
	if err != nil {
		return false, err
	}
	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := expectConnected(conn); err != nil {
		return false, err
	}

	if err := f.Refresh(ctx); err != nil {
		return false, err
	}

	for {
		var msg types.SocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		if msg.Type != types.MessageChange || msg.Change == nil {
			continue
		}

		f.view.Apply(*msg.Change)
		if f.OnChange != nil {
			f.OnChange(*msg.Change)
		}
	}
}
