package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Job is a named payload fired roughly once after a short delay. The coupon
// lookup builder uses it to chain backfill batches without blocking the
// request that triggered the run.
type Job struct {
	Name    string
	Payload map[string]string
}

// Scheduler fires a named job after a delay. Delivery is best-effort and
// approximately-once; consumers must tolerate duplicates and drops.
type Scheduler interface {
	Schedule(ctx context.Context, job Job, delay time.Duration) error
}

// HandlerFunc processes a scheduled job.
type HandlerFunc func(ctx context.Context, job Job)

// TimerScheduler runs jobs in-process on a timer. It is the default for
// single-instance deployments and tests.
type TimerScheduler struct {
	mu      sync.Mutex
	handler HandlerFunc
	base    context.Context
	wg      sync.WaitGroup
	closed  bool
}

// NewTimerScheduler constructs a scheduler dispatching to handler. The base
// context bounds all job executions; cancelling it stops new work.
func NewTimerScheduler(base context.Context, handler HandlerFunc) (*TimerScheduler, error) {
	if handler == nil {
		return nil, errors.New("timer scheduler: handler is required")
	}
	if base == nil {
		base = context.Background()
	}
	return &TimerScheduler{handler: handler, base: base}, nil
}

// Schedule implements Scheduler.
func (s *TimerScheduler) Schedule(_ context.Context, job Job, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("timer scheduler: closed")
	}
	if delay < 0 {
		delay = 0
	}

	s.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if s.base.Err() != nil {
			return
		}
		s.handler(s.base, job)
	})
	return nil
}

// Close stops accepting jobs and waits for in-flight handlers.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
