package scheduler

import (
	"context"
	"sync"
	"time"

	"weatherbot/clock"

	log "github.com/sirupsen/logrus"
)

// Schedule computes the next run strictly after now
type Schedule interface {
	Next(now time.Time) time.Time
	String() string
}

// Hourly fires at the top of every hour
type Hourly struct{}

func (Hourly) Next(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}

func (Hourly) String() string { return "hourly" }

// Daily fires once a day at Hour:00 in Location
type Daily struct {
	Hour     int
	Location *time.Location
}

func (d Daily) Next(now time.Time) time.Time {
	loc := locationOrUTC(d.Location)
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, 0, 0, 0, loc)
	}
	return next
}

func (d Daily) String() string { return "daily" }

// Weekly fires once a week on Weekday at Hour:00 in Location
type Weekly struct {
	Weekday  time.Weekday
	Hour     int
	Location *time.Location
}

func (w Weekly) Next(now time.Time) time.Time {
	loc := locationOrUTC(w.Location)
	local := now.In(loc)
	ahead := (int(w.Weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+ahead, w.Hour, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+ahead+7, w.Hour, 0, 0, 0, loc)
	}
	return next
}

func (w Weekly) String() string { return "weekly" }

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// Job is the work performed on each tick
type Job func(ctx context.Context)

// Scheduler runs jobs on wall-clock schedules. It keeps no state across
// restarts; the next run is always derived from the current time.
type Scheduler struct {
	clock clock.Clock
	after func(d time.Duration) <-chan time.Time
}

func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{clock: clk, after: time.After}
}

// Start runs job on every tick of schedule until ctx ends or the returned
// stop function is called. A job runs to completion before the next wait
// begins, so ticks of one schedule never overlap.
func (s *Scheduler) Start(ctx context.Context, name string, schedule Schedule, job Job) func() {
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithFields(log.Fields{
			"job":      name,
			"schedule": schedule.String(),
		}).Info("Scheduler started")

		for {
			now := s.clock.Now()
			next := schedule.Next(now)
			wait := next.Sub(now)
			log.WithFields(log.Fields{
				"job":      name,
				"next_run": next.UTC().Format(time.RFC3339),
				"wait":     wait.String(),
			}).Debug("Scheduler waiting until next run")

			select {
			case <-ctx.Done():
				log.WithField("job", name).Info("Scheduler shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.WithField("job", name).Info("Scheduler shutting down (stop requested)...")
				return
			case <-s.after(wait):
				s.run(ctx, name, job)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopChan) })
		<-done
	}
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"job":   name,
				"panic": r,
			}).Error("Scheduled job panicked")
		}
	}()
	job(ctx)
}
