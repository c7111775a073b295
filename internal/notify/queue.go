package notify

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

type Emitter interface {
	Emit(ctx context.Context, req Request) (models.Notification, error)
}

// LocalQueue decouples the state machine from the broker inside one process.
type LocalQueue struct {
	ch chan Request
}

func NewLocalQueue(buffer int) *LocalQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalQueue{ch: make(chan Request, buffer)}
}

// Enqueue never blocks. A full queue returns ErrQueueFull.
func (q *LocalQueue) Enqueue(_ context.Context, req Request) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Len() int {
	return len(q.ch)
}

// Run emits queued requests with the given number of workers until ctx is done.
func (q *LocalQueue) Run(ctx context.Context, emitter Emitter, workers int) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req := <-q.ch:
					emit(ctx, emitter, req)
				}
			}
		}()
	}

	wg.Wait()
}

func emit(ctx context.Context, emitter Emitter, req Request) {
	if _, err := emitter.Emit(ctx, req); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			log.Printf("[queue] drop invalid request for %s: %v", req.Audience, err)
			return
		}
		log.Printf("[queue] emit for %s failed: %v", req.Audience, err)
	}
}
