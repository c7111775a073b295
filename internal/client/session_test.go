package client

import (
	"context"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajs41/RideEasy-Rental/db"
	"github.com/surajs41/RideEasy-Rental/internal/auth"
	"github.com/surajs41/RideEasy-Rental/internal/booking"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/handlers"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
	"github.com/surajs41/RideEasy-Rental/internal/router"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type server struct {
	url     string
	broker  *notify.Broker
	hub     *notify.Hub
	feed    *changefeed.Feed
	machine *booking.Machine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, auth.InitJWTSecret("client-test-secret"))

	gdb, err := db.OpenMemory()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	feed := changefeed.NewFeed(16)
	hub := notify.NewHub(16)
	broker := notify.NewBroker(notify.NewGormStore(gdb), hub, nil)

	queue := notify.NewLocalQueue(64)
	go queue.Run(ctx, broker, 1)

	machine := booking.NewMachine(booking.NewGormStore(gdb, feed), queue)
	srv := httptest.NewServer(router.NewRouter(&handlers.Handler{
		Machine: machine,
		Broker:  broker,
		Feed:    feed,
	}))

	t.Cleanup(func() {
		hub.Close()
		feed.DropAll()
		srv.Close()
		cancel()
		broker.Wait()
	})

	return &server{url: srv.URL + "/api", broker: broker, hub: hub, feed: feed, machine: machine}
}

func (s *server) api(t *testing.T, userID, role string) *API {
	t.Helper()
	token, err := auth.GenerateJWT(userID, role, time.Hour)
	require.NoError(t, err)
	return NewAPI(s.url, token)
}

func (s *server) emit(t *testing.T, audience, message string) models.Notification {
	t.Helper()
	n, err := s.broker.Emit(context.Background(), notify.Request{
		Audience: audience,
		Kind:     models.KindGeneral,
		Message:  message,
	})
	require.NoError(t, err)
	return n
}

func fastBackoff() *Backoff {
	return &Backoff{Min: 10 * time.Millisecond, Max: 50 * time.Millisecond}
}

// startSession runs the session in the background and waits until it is subscribed.
func startSession(t *testing.T, api *API, audience string) *Session {
	t.Helper()
	session := NewSession(api, audience, NewInbox())
	session.backoff = fastBackoff()

	var synced sync.WaitGroup
	synced.Add(1)
	var once sync.Once
	session.OnSync = func(int) { once.Do(synced.Done) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	synced.Wait()
	return session
}

func inboxIDs(inbox *Inbox) []string {
	var out []string
	for _, n := range inbox.List() {
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}

func persistedIDs(t *testing.T, srv *server, audience string) []string {
	t.Helper()
	notifications, err := srv.broker.Fetch(context.Background(), audience)
	require.NoError(t, err)

	var out []string
	for _, n := range notifications {
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}

func TestSessionReceivesPushes(t *testing.T) {
	srv := newServer(t)
	session := startSession(t, srv.api(t, "alice", "user"), "alice")

	n := srv.emit(t, "alice", "Your booking was approved")
	srv.emit(t, "bob", "not for alice")

	require.Eventually(t, func() bool { return session.Inbox().Len() == 1 }, waitFor, tick)

	got, ok := session.Inbox().Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "Your booking was approved", got.Message)
	assert.Equal(t, 1, session.Inbox().UnreadCount())
}

func TestSessionCatchesUpOnConnect(t *testing.T) {
	srv := newServer(t)

	missed := srv.emit(t, "alice", "sent while offline")
	session := startSession(t, srv.api(t, "alice", "user"), "alice")

	_, ok := session.Inbox().Get(missed.ID)
	assert.True(t, ok)
}

func TestSessionConvergesAfterDisconnect(t *testing.T) {
	srv := newServer(t)
	session := startSession(t, srv.api(t, "root", auth.RoleAdmin), models.AdminAudience)

	for i := 0; i < 3; i++ {
		srv.emit(t, models.AdminAudience, "before drop")
	}
	require.Eventually(t, func() bool { return session.Inbox().Len() == 3 }, waitFor, tick)

	// every live connection is cut; these land while the client is reconnecting
	srv.hub.Close()
	for i := 0; i < 2; i++ {
		srv.emit(t, models.AdminAudience, "during reconnect")
	}

	require.Eventually(t, func() bool { return srv.hub.Count(models.AdminAudience) == 1 }, waitFor, tick)
	srv.emit(t, models.AdminAudience, "after reconnect")

	want := persistedIDs(t, srv, models.AdminAudience)
	require.Len(t, want, 6)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, inboxIDs(session.Inbox()))
	}, waitFor, tick)
	assert.Equal(t, 6, session.Inbox().UnreadCount())
}

func TestSessionsOnSameAudienceShareReadState(t *testing.T) {
	srv := newServer(t)
	tab1 := startSession(t, srv.api(t, "root", auth.RoleAdmin), models.AdminAudience)
	tab2 := startSession(t, srv.api(t, "ops", auth.RoleAdmin), models.AdminAudience)

	n1 := srv.emit(t, models.AdminAudience, "New booking request")

	for _, tab := range []*Session{tab1, tab2} {
		tab := tab
		require.Eventually(t, func() bool { return tab.Inbox().UnreadCount() == 1 }, waitFor, tick)
	}

	require.NoError(t, tab1.MarkRead(context.Background(), n1.ID))
	assert.Equal(t, 0, tab1.Inbox().UnreadCount())

	// no push for read state; the other tab sees it on its next fetch
	assert.Equal(t, 1, tab2.Inbox().UnreadCount())
	added, err := tab2.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 0, tab2.Inbox().UnreadCount())
}

func TestSessionRejectsForeignAudience(t *testing.T) {
	srv := newServer(t)
	session := NewSession(srv.api(t, "alice", "user"), models.AdminAudience, NewInbox())

	_, err := session.connectOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, session.Inbox().Len())
}

func TestBookingFeedTracksLifecycle(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	existing, err := srv.machine.Create(ctx, models.Booking{
		SubjectUserID: "alice",
		ResourceID:    "bike-royal-enfield-classic",
		StartAt:       time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		EndAt:         time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC),
		Amount:        150000,
	}, "alice")
	require.NoError(t, err)

	feed := NewBookingFeed(srv.api(t, "alice", "user"), NewBookingView())
	feed.backoff = fastBackoff()
	synced := make(chan int, 8)
	feed.OnSync = func(rows int) { synced <- rows }

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = feed.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case rows := <-synced:
		assert.Equal(t, 1, rows)
	case <-time.After(waitFor):
		t.Fatal("booking feed never synced")
	}

	created, err := srv.machine.Create(ctx, models.Booking{
		SubjectUserID: "alice",
		ResourceID:    "bike-ktm-duke-390",
		StartAt:       time.Date(2026, 11, 5, 9, 0, 0, 0, time.UTC),
		EndAt:         time.Date(2026, 11, 6, 9, 0, 0, 0, time.UTC),
		Amount:        90000,
	}, "alice")
	require.NoError(t, err)

	// someone else's booking never reaches alice
	_, err = srv.machine.Create(ctx, models.Booking{
		SubjectUserID: "bob",
		ResourceID:    "bike-ktm-duke-390",
		StartAt:       time.Date(2026, 11, 5, 9, 0, 0, 0, time.UTC),
		EndAt:         time.Date(2026, 11, 6, 9, 0, 0, 0, time.UTC),
	}, "bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(feed.View().List()) == 2 }, waitFor, tick)
	assert.Equal(t, created.ID, feed.View().List()[0].ID)

	_, err = srv.machine.Transition(ctx, created.ID, models.BookingPending, models.BookingConfirmed, "root")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		b, ok := feed.View().Get(created.ID)
		return ok && b.Status == models.BookingConfirmed
	}, waitFor, tick)

	// a dropped stream refetches the baseline on reconnect
	srv.feed.DropAll()
	select {
	case rows := <-synced:
		assert.Equal(t, 2, rows)
	case <-time.After(waitFor):
		t.Fatal("booking feed never resynced")
	}

	require.NoError(t, srv.machine.Delete(ctx, existing.ID, "root"))
	require.Eventually(t, func() bool {
		_, ok := feed.View().Get(existing.ID)
		return !ok
	}, waitFor, tick)
	assert.Len(t, feed.View().List(), 1)
}
