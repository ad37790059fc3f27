//go:build !integration

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct {
	calls int64
	limit int64
}

func (c *countingSweeper) Sweep(ctx context.Context, limit int) int {
	atomic.AddInt64(&c.calls, 1)
	atomic.StoreInt64(&c.limit, int64(limit))
	return 0
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduler_SweepsOnCadence(t *testing.T) {
	log := zerolog.Nop()
	sweeper := &countingSweeper{}
	s := NewScheduler(10*time.Millisecond, 7, sweeper, &log)

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&sweeper.calls) >= 3 })
	if got := atomic.LoadInt64(&sweeper.limit); got != 7 {
		t.Errorf("expected sweep limit 7, got %d", got)
	}
}

func TestScheduler_StopEndsTheLoop(t *testing.T) {
	log := zerolog.Nop()
	sweeper := &countingSweeper{}
	s := NewScheduler(10*time.Millisecond, 1, sweeper, &log)

	s.Start(context.Background())
	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&sweeper.calls) >= 1 })
	s.Stop()

	settled := atomic.LoadInt64(&sweeper.calls)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&sweeper.calls); got != settled {
		t.Errorf("sweeps continued after Stop: %d -> %d", settled, got)
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	log := zerolog.Nop()
	sweeper := &countingSweeper{}
	s := NewScheduler(time.Hour, 1, sweeper, &log)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()

	if atomic.LoadInt64(&sweeper.calls) != 0 {
		t.Errorf("no tick should have fired, got %d", sweeper.calls)
	}
}

func TestScheduler_DefaultsApply(t *testing.T) {
	log := zerolog.Nop()
	s := NewScheduler(0, 0, &countingSweeper{}, &log)
	if s.interval != 5*time.Second {
		t.Errorf("expected 5s default interval, got %v", s.interval)
	}
	if s.limit != 10 {
		t.Errorf("expected default limit 10, got %d", s.limit)
	}
}
