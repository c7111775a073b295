package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PGNotifier publishes changes through postgres NOTIFY so that every
// instance running a PGListener on the same channel sees them.
type PGNotifier struct {
	db      *gorm.DB
	channel string
}

func NewPGNotifier(db *gorm.DB, channel string) *PGNotifier {
	return &PGNotifier{db: db, channel: channel}
}

func (n *PGNotifier) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	if err := n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify %s: %w", n.channel, err)
	}

	return nil
}

// PGListener relays postgres notifications into a local Feed.
type PGListener struct {
	listener *pq.Listener
	channel  string
	feed     *Feed
}

func NewPGListener(dsn, channel string, feed *Feed) *PGListener {
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[feed] listener event %d: %v", ev, err)
		}
	})

	return &PGListener{listener: listener, channel: channel, feed: feed}
}

func (l *PGListener) Run(ctx context.Context) error {
	if err := l.listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}

	log.Printf("[feed] listening on %s", l.channel)

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.listener.Close()
		case n := <-l.listener.Notify:
			if n == nil {
				// the connection was re-established and notifications may be lost
				log.Println("[feed] listener reconnected, dropping subscribers for refetch")
				l.feed.DropAll()
				continue
			}
			change, err := DecodeChange([]byte(n.Extra))
			if err != nil {
				log.Printf("[feed] skip notification: %v", err)
				continue
			}
			_ = l.feed.Publish(ctx, change)
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				log.Printf("[feed] listener ping: %v", err)
			}
		}
	}
}

func DecodeChange(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	switch c.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Change{}, fmt.Errorf("decode change: unknown op %q", c.Op)
	}
	if c.Booking.ID == "" {
		return Change{}, fmt.Errorf("decode change: missing booking id")
	}
	return c, nil
}
