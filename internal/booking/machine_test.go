package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/surajs41/RideEasy-Rental/db"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
)

type recordingQueue struct {
	mu   sync.Mutex
	reqs []notify.Request
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, req notify.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func (q *recordingQueue) requests() []notify.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]notify.Request(nil), q.reqs...)
}

type MachineSuite struct {
	suite.Suite
	store   *GormStore
	feed    *changefeed.Feed
	queue   *recordingQueue
	machine *Machine
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	gdb, err := db.OpenMemory()
	s.Require().NoError(err)

	s.feed = changefeed.NewFeed(64)
	s.store = NewGormStore(gdb, s.feed)
	s.queue = &recordingQueue{}
	s.machine = NewMachine(s.store, s.queue)
}

func (s *MachineSuite) newBooking(user string, amount int64) models.Booking {
	start := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	b, err := s.machine.Create(context.Background(), models.Booking{
		SubjectUserID: user,
		ResourceID:    "bike-royal-enfield-classic",
		StartAt:       start,
		EndAt:         start.Add(48 * time.Hour),
		Amount:        amount,
	}, user)
	s.Require().NoError(err)
	return b
}

func (s *MachineSuite) TestCreateStartsPendingAndTellsAdmins() {
	b := s.newBooking("alice", 1000)

	s.Equal(models.BookingPending, b.Status)
	s.NotEmpty(b.ID)

	reqs := s.queue.requests()
	s.Require().Len(reqs, 1)
	s.Equal(models.AdminAudience, reqs[0].Audience)
	s.Equal(models.SeverityInfo, reqs[0].Severity)
	s.Equal(b.ID, *reqs[0].CausalBookingID)
}

func (s *MachineSuite) TestCreateValidates() {
	ctx := context.Background()
	start := time.Now().UTC()

	cases := []models.Booking{
		{SubjectUserID: "alice", ResourceID: "bike", StartAt: start, EndAt: start},
		{SubjectUserID: "alice", ResourceID: "bike", StartAt: start, EndAt: start.Add(time.Hour), Amount: -1},
		{SubjectUserID: "", ResourceID: "bike", StartAt: start, EndAt: start.Add(time.Hour)},
		{SubjectUserID: "alice", ResourceID: " ", StartAt: start, EndAt: start.Add(time.Hour)},
		{SubjectUserID: models.AdminAudience, ResourceID: "bike", StartAt: start, EndAt: start.Add(time.Hour)},
	}

	for _, c := range cases {
		_, err := s.machine.Create(ctx, c, "alice")
		s.ErrorIs(err, ErrInvalidBooking)
	}
	s.Empty(s.queue.requests())
}

func (s *MachineSuite) TestTransitionGraph() {
	ctx := context.Background()

	for _, from := range models.BookingStatuses {
		for _, to := range models.BookingStatuses {
			b := s.bookingIn(from)

			_, err := s.machine.Transition(ctx, b.ID, from, to, "admin-1")

			if CanTransition(from, to) {
				s.NoError(err, "%s -> %s", from, to)
				continue
			}

			var invalid *InvalidTransitionError
			s.ErrorAs(err, &invalid, "%s -> %s", from, to)

			stored, err := s.store.Get(ctx, b.ID)
			s.Require().NoError(err)
			s.Equal(from, stored.Status)
		}
	}
}

// bookingIn drives a fresh booking to status through legal edges.
func (s *MachineSuite) bookingIn(status models.BookingStatus) models.Booking {
	ctx := context.Background()
	b := s.newBooking("alice", 500)

	path := map[models.BookingStatus][]models.BookingStatus{
		models.BookingPending:   nil,
		models.BookingConfirmed: {models.BookingConfirmed},
		models.BookingRejected:  {models.BookingRejected},
		models.BookingCancelled: {models.BookingConfirmed, models.BookingCancelled},
		models.BookingCompleted: {models.BookingConfirmed, models.BookingCompleted},
	}

	current := models.BookingPending
	for _, next := range path[status] {
		var err error
		b, err = s.machine.Transition(ctx, b.ID, current, next, "admin-1")
		s.Require().NoError(err)
		current = next
	}
	return b
}

func (s *MachineSuite) TestApproveThenStaleReject() {
	ctx := context.Background()
	b1 := s.newBooking("alice", 1000)
	before := b1.UpdatedAt

	confirmed, err := s.machine.Transition(ctx, b1.ID, models.BookingPending, models.BookingConfirmed, "admin-1")
	s.Require().NoError(err)
	s.Equal(models.BookingConfirmed, confirmed.Status)
	s.True(confirmed.UpdatedAt.After(before))

	reqs := s.queue.requests()
	s.Require().Len(reqs, 2)
	approved := reqs[1]
	s.Equal("alice", approved.Audience)
	s.Equal(models.KindBooking, approved.Kind)
	s.Equal(models.SeverityApproved, approved.Severity)
	s.Equal(b1.ID, *approved.CausalBookingID)

	_, err = s.machine.Transition(ctx, b1.ID, models.BookingPending, models.BookingRejected, "admin-2")
	var conflict *ConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(models.BookingConfirmed, conflict.Actual)
	s.Len(s.queue.requests(), 2, "a lost transition emits nothing")
}

func (s *MachineSuite) TestConcurrentTransitionsExactlyOneWins() {
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		b := s.newBooking("bob", 2500)
		targets := []models.BookingStatus{models.BookingConfirmed, models.BookingRejected}
		errs := make([]error, len(targets))

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i, target := range targets {
			wg.Add(1)
			go func(i int, target models.BookingStatus) {
				defer wg.Done()
				<-start
				_, errs[i] = s.machine.Transition(ctx, b.ID, models.BookingPending, target, "admin")
			}(i, target)
		}
		close(start)
		wg.Wait()

		winners := 0
		var winner models.BookingStatus
		for i, err := range errs {
			if err == nil {
				winners++
				winner = targets[i]
				continue
			}
			var conflict *ConflictError
			s.ErrorAs(err, &conflict)
		}
		s.Require().Equal(1, winners)

		stored, err := s.store.Get(ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(winner, stored.Status)
	}
}

func (s *MachineSuite) TestEnqueueFailureKeepsTransition() {
	ctx := context.Background()
	b := s.newBooking("carol", 700)
	s.queue.err = notify.ErrQueueFull

	updated, err := s.machine.Transition(ctx, b.ID, models.BookingPending, models.BookingRejected, "admin-1")
	s.Require().NoError(err)
	s.Equal(models.BookingRejected, updated.Status)

	stored, err := s.store.Get(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.BookingRejected, stored.Status)
}

func (s *MachineSuite) TestTransitionUnknownBooking() {
	_, err := s.machine.Transition(context.Background(), "missing", models.BookingPending, models.BookingConfirmed, "admin-1")
	s.ErrorIs(err, ErrNotFound)
}

func (s *MachineSuite) TestChangesAndHistory() {
	ctx := context.Background()
	sub := s.feed.Subscribe(changefeed.UserBookings("dave"))
	defer sub.Close()

	b := s.newBooking("dave", 1200)
	_, err := s.machine.Transition(ctx, b.ID, models.BookingPending, models.BookingConfirmed, "admin-1")
	s.Require().NoError(err)
	s.Require().NoError(s.machine.Delete(ctx, b.ID, "admin-1"))

	var ops []changefeed.Op
	for i := 0; i < 3; i++ {
		ops = append(ops, (<-sub.Events()).Op)
	}
	s.Equal([]changefeed.Op{changefeed.OpInsert, changefeed.OpUpdate, changefeed.OpDelete}, ops)

	_, err = s.store.Get(ctx, b.ID)
	s.ErrorIs(err, ErrNotFound)

	history, err := s.store.History(ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(models.BookingPending, history[1].FromStatus)
	s.Equal(models.BookingConfirmed, history[1].ToStatus)
	s.Equal("admin-1", history[1].Actor)
	s.Contains(string(history[1].Snapshot), `"status":"confirmed"`)

	s.ErrorIs(s.machine.Delete(ctx, b.ID, "admin-1"), ErrNotFound)
}

func (s *MachineSuite) TestListScopesAndEnded() {
	ctx := context.Background()
	a := s.newBooking("erin", 100)
	s.newBooking("frank", 100)

	all, err := s.store.List(ctx, changefeed.AllBookings())
	s.Require().NoError(err)
	s.Len(all, 2)

	mine, err := s.store.List(ctx, changefeed.UserBookings("erin"))
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(a.ID, mine[0].ID)

	_, err = s.machine.Transition(ctx, a.ID, models.BookingPending, models.BookingConfirmed, "admin-1")
	s.Require().NoError(err)

	ended, err := s.store.ListEndedConfirmed(ctx, a.EndAt.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(ended, 1)
	s.Equal(a.ID, ended[0].ID)

	notYet, err := s.store.ListEndedConfirmed(ctx, a.StartAt)
	s.Require().NoError(err)
	s.Empty(notYet)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.BookingPending, models.BookingConfirmed))
	assert.True(t, CanTransition(models.BookingPending, models.BookingRejected))
	assert.True(t, CanTransition(models.BookingConfirmed, models.BookingCancelled))
	assert.True(t, CanTransition(models.BookingConfirmed, models.BookingCompleted))
	assert.False(t, CanTransition(models.BookingConfirmed, models.BookingPending))
	assert.False(t, CanTransition(models.BookingRejected, models.BookingConfirmed))
	assert.False(t, CanTransition(models.BookingPending, models.BookingCompleted))
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, models.SeverityApproved, SeverityFor(models.BookingConfirmed))
	assert.Equal(t, models.SeverityRejected, SeverityFor(models.BookingRejected))
	assert.Equal(t, models.SeverityInfo, SeverityFor(models.BookingCancelled))
	assert.Equal(t, models.SeverityInfo, SeverityFor(models.BookingCompleted))
}

func TestConflictErrorMessage(t *testing.T) {
	err := error(&ConflictError{BookingID: "b1", Expected: models.BookingPending, Actual: models.BookingConfirmed})

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), "expected status pending, found confirmed")
}
