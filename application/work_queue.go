package application

import (
	"context"
	"errors"
	"time"

	"weatherbot/models"
	"weatherbot/service"

	log "github.com/sirupsen/logrus"
)

const defaultQueueCapacity = 32

// QueueStats summarizes one drained queue
type QueueStats struct {
	Processed      int
	Failed         int
	Remaining      int  // users never attempted because the run stopped
	QuotaExhausted bool // the run stopped on the quota signal
}

// UserProcessor handles one user. Returning service.ErrQuotaExhausted stops
// the run; any other error is logged and counted.
type UserProcessor func(ctx context.Context, user *models.User) error

// WorkQueue runs per-user work sequentially with a pacing delay between
// users. One producer feeds a bounded channel and one consumer drains it.
type WorkQueue struct {
	capacity int
	pace     func(ctx context.Context) time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWorkQueue creates a queue; pace is consulted before every user after
// the first
func NewWorkQueue(capacity int, pace func(ctx context.Context) time.Duration) *WorkQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if pace == nil {
		pace = func(context.Context) time.Duration { return 0 }
	}
	return &WorkQueue{capacity: capacity, pace: pace, sleep: sleepContext}
}

// Run processes users in order until the list is exhausted, the context
// ends or the processor reports quota exhaustion
func (q *WorkQueue) Run(ctx context.Context, users []*models.User, process UserProcessor) QueueStats {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan *models.User, q.capacity)
	go func() {
		defer close(items)
		for _, user := range users {
			select {
			case items <- user:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var stats QueueStats
	attempted := 0
	for user := range items {
		if attempted > 0 {
			if err := q.sleep(runCtx, q.pace(runCtx)); err != nil {
				break
			}
		}
		attempted++

		err := q.processOne(runCtx, user, process)
		switch {
		case err == nil:
			stats.Processed++
		case errors.Is(err, service.ErrQuotaExhausted):
			stats.QuotaExhausted = true
		default:
			stats.Failed++
		}
		if stats.QuotaExhausted {
			break
		}
	}
	cancel()
	// Let the producer observe cancellation and close the channel
	for range items {
	}

	stats.Remaining = len(users) - attempted
	if stats.QuotaExhausted {
		// The user that hit the limit was not checked
		stats.Remaining++
	}
	return stats
}

// processOne isolates a single user so a panic never aborts the run
func (q *WorkQueue) processOne(ctx context.Context, user *models.User, process UserProcessor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"user_id": user.UserID,
				"panic":   r,
			}).Error("User check panicked")
			err = errors.New("user check panicked")
		}
	}()
	return process(ctx, user)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
