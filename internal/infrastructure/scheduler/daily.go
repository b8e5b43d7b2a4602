package scheduler

import (
	"context"
	"time"

	"cvewatch/internal/ports"
)

// DailyScheduler fires once per day at a fixed wall-clock hour and minute.
// The timer re-arms for the next cycle regardless of how the job went, and
// jobs run on their own goroutine so a slow run never blocks the timer.
type DailyScheduler struct {
	hour   int
	minute int
	loc    *time.Location
	stop   chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler for the given wall-clock trigger.
func NewDailyScheduler(hour, minute int, loc *time.Location) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{hour: hour, minute: minute, loc: loc}
}

// NextAfter returns the first configured trigger time strictly after t.
// Run status reporting uses the same computation for nextRunAt.
func (s *DailyScheduler) NextAfter(t time.Time) time.Time {
	local := t.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the timer goroutine. Calling Start twice is a no-op.
func (s *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		for {
			fireAt := s.NextAfter(time.Now())
			timer := time.NewTimer(time.Until(fireAt))

			select {
			case <-timer.C:
				go job(fireAt)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer goroutine.
func (s *DailyScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
