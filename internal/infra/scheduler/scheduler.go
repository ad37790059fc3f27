package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the minimal interface the scheduler needs from the worker side.
type Sweeper interface {
	// Sweep claims and executes up to limit pending jobs, returning how many
	// it processed.
	Sweep(ctx context.Context, limit int) int
}

// Scheduler invokes a Sweeper on a fixed cadence. It is the durability
// backstop for jobs whose immediate worker hint was lost.
type Scheduler struct {
	interval time.Duration
	limit    int
	sweeper  Sweeper
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that sweeps every `interval`.
// If interval <= 0 it defaults to 5 seconds.
func NewScheduler(interval time.Duration, limit int, sweeper Sweeper, log *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if limit <= 0 {
		limit = 10
	}
	return &Scheduler{
		interval: interval,
		limit:    limit,
		sweeper:  sweeper,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		// already started
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Int("limit", s.limit).Msg("sweep scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("sweep scheduler stopping")
			return
		case <-ticker.C:
			if n := s.sweeper.Sweep(s.ctx, s.limit); n > 0 {
				s.log.Debug().Int("processed", n).Msg("sweep tick")
			}
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
