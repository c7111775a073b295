package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/types"
)

// Session keeps an Inbox in sync with one audience. Each connection runs
// subscribe, catch-up fetch, merge and only then consumes pushes, so a drop
// at any point is healed by the next connection's fetch.
type Session struct {
	api      *API
	audience string
	inbox    *Inbox
	backoff  *Backoff

	// OnSync is called after every catch-up merge with the number of new notifications.
	OnSync func(added int)
	// OnPush is called for every pushed notification after it is merged.
	OnPush func(n models.Notification, added bool)
}

func NewSession(api *API, audience string, inbox *Inbox) *Session {
	return &Session{api: api, audience: audience, inbox: inbox, backoff: DefaultBackoff()}
}

func (s *Session) Inbox() *Inbox {
	return s.inbox
}

// Run connects and reconnects until ctx is done. Connection loss is not an
// error for the caller.
func (s *Session) Run(ctx context.Context) error {
	for {
		synced, err := s.connectOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if synced {
			s.backoff.Reset()
		}

		wait := s.backoff.Next()
		log.Printf("[session] %s disconnected (%v), reconnecting in %s", s.audience, err, wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Refresh is a catch-up fetch merged into the inbox. Manual refresh uses
// the same path as reconnects.
func (s *Session) Refresh(ctx context.Context) (int, error) {
	notifications, err := s.api.FetchNotifications(ctx, s.audience)
	if err != nil {
		return 0, fmt.Errorf("catch-up fetch: %w", err)
	}

	added := s.inbox.Merge(notifications...)
	if s.OnSync != nil {
		s.OnSync(added)
	}
	return added, nil
}

// MarkRead updates the inbox first so the badge drops immediately, then
// persists. The server call is idempotent and may be retried.
func (s *Session) MarkRead(ctx context.Context, id string) error {
	s.inbox.MarkRead(id)
	return s.api.MarkRead(ctx, id)
}

func (s *Session) connectOnce(ctx context.Context) (bool, error) {
	conn, err := s.api.Dial(ctx, "/ws/notifications", url.Values{"audience": {s.audience}})
	if err != nil {
		return false, err
	}
	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := expectConnected(conn); err != nil {
		return false, err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return false, err
	}

	for {
		var msg types.SocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		if msg.Type != types.MessageNotification || msg.Notification == nil {
			continue
		}

		added := s.inbox.Merge(*msg.Notification) == 1
		if s.OnPush != nil {
			s.OnPush(*msg.Notification, added)
		}
	}
}

func expectConnected(conn *websocket.Conn) error {
	var hello types.SocketMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	if hello.Type != types.MessageConnected {
		return errors.New("expected connected message, got " + hello.Type)
	}
	return nil
}

// closeOnDone closes conn when ctx ends so a blocked read returns.
func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	return func() { close(done) }
}
