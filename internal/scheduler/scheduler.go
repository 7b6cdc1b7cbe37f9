package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrCycleRunning is returned by TriggerNow while a cycle is in flight.
var ErrCycleRunning = errors.New("a cycle is already running")

// CycleFunc is one full monitoring cycle. A non-nil error is logged but
// never stops the schedule.
type CycleFunc func(ctx context.Context) error

// Scheduler runs cycles on a fixed cadence with a non-overlap guard:
// if a cycle is still running when the next tick fires, the tick is
// skipped rather than queued.
type Scheduler struct {
	cron    *cron.Cron
	run     CycleFunc
	running atomic.Bool
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler for the given cadence. spec is either a plain
// duration ("15m") or a cron expression ("*/10 * * * *").
func New(spec string, run CycleFunc, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		run:  run,
		log:  log.With().Str("component", "scheduler").Logger(),
	}

	entry := spec
	if d, err := time.ParseDuration(spec); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("interval %s is below the 1s floor", spec)
		}
		entry = "@every " + spec
	} else if !strings.HasPrefix(spec, "@") && len(strings.Fields(spec)) != 5 {
		return nil, fmt.Errorf("schedule %q is neither a duration nor a cron expression", spec)
	}

	if _, err := s.cron.AddFunc(entry, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins ticking. ctx cancels in-flight cycles on Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop halts the schedule and cancels any in-flight cycle. The returned
// channel closes once scheduled jobs have returned.
func (s *Scheduler) Stop() <-chan struct{} {
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
	return stopCtx.Done()
}

// Running reports whether a cycle is currently in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// TriggerNow runs one cycle immediately, outside the schedule. If a
// cycle is already in flight the call is a no-op and returns
// ErrCycleRunning; nothing is queued.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	defer s.running.Store(false)

	s.log.Info().Msg("manual cycle triggered")
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if err := s.run(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("cycle failed")
	}
}
