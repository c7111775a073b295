package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/surajs41/RideEasy-Rental/internal/booking"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

const SystemActor = "system"

type EndedLister interface {
	ListEndedConfirmed(ctx context.Context, t time.Time) ([]models.Booking, error)
}

type Transitioner interface {
	Transition(ctx context.Context, id string, expected, target models.BookingStatus, actor string) (models.Booking, error)
}

// Scheduler completes confirmed bookings once their rental period is over.
// Completion goes through the state machine like any admin action.
type Scheduler struct {
	sched    gocron.Scheduler
	lister   EndedLister
	machine  Transitioner
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastRun  time.Time
	complete int
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler initializes a new Scheduler instance
func NewScheduler(lister EndedLister, machine Transitioner, interval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sched:    sched,
		lister:   lister,
		machine:  machine,
		interval: interval,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the sweep job and begins scheduling
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	j, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.Sweep(s.ctx)
		}),
		gocron.WithName("complete-ended-bookings"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	s.sched.Start()
	log.Printf("Scheduler started, job %s %s every %s", j.Name(), j.ID().String(), s.interval)
	return nil
}

// Stop gracefully shuts down the sweep job
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()

	if err := s.sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown: %v", err)
	}
	log.Println("Scheduler stopped")
}

// Sweep moves every confirmed booking whose end_at has passed to completed.
// A booking an admin changed in the meantime is skipped.
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.now()

	ended, err := s.lister.ListEndedConfirmed(ctx, now)
	if err != nil {
		log.Printf("Failed to list ended bookings: %v", err)
		return 0
	}

	completed := 0
	for _, b := range ended {
		_, err := s.machine.Transition(ctx, b.ID, models.BookingConfirmed, models.BookingCompleted, SystemActor)

		var conflict *booking.ConflictError
		switch {
		case err == nil:
			completed++
		case errors.As(err, &conflict), errors.Is(err, booking.ErrNotFound):
			log.Printf("Skipping booking %s: %v", b.ID, err)
		default:
			log.Printf("Failed to complete booking %s: %v", b.ID, err)
		}
	}

	s.mu.Lock()
	s.lastRun = now
	s.complete += completed
	s.mu.Unlock()

	if completed > 0 {
		log.Printf("Completed %d of %d ended bookings", completed, len(ended))
	}
	return completed
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"interval":  s.interval.String(),
		"last_run":  s.lastRun,
		"completed": s.complete,
		"running":   s.ctx.Err() == nil,
	}
}
