package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/festlabs/festreg/internal/observability"
)

// Clock supplies current time; injectable so tests can jump around without
// real waiting.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }

// Store is the durable side of the scheduler. MarkFired must flip
// registration_open=false and has_executed=true in one conditional write and
// report whether this call performed the flip; restarts re-evaluate from what
// it persisted, never from an in-memory timer.
type Store interface {
	Load(ctx context.Context) (settings.Scheduler, error)
	MarkFired(ctx context.Context, at time.Time) (bool, error)
}

type Config struct {
	PollInterval time.Duration
}

// AutoDisable closes public registration exactly once at the configured
// instant. Idle until the scheduled time is reached, Fired forever after.
type AutoDisable struct {
	cfg   Config
	store Store
	clock Clock
	log   *slog.Logger
	prom  *observability.Prom
}

func New(cfg Config, store Store, clock Clock, log *slog.Logger, prom *observability.Prom) *AutoDisable {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if clock == nil {
		clock = realClock{}
	}
	return &AutoDisable{cfg: cfg, store: store, clock: clock, log: log, prom: prom}
}

// RunOnce evaluates persisted state against the clock and fires if due.
// It returns done=true once the flip has happened (now or previously), at
// which point polling can stop. Storage errors leave the state untouched;
// the scheduler never marks itself fired without a successful durable write.
func (s *AutoDisable) RunOnce(ctx context.Context) (done bool, err error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}

	if cfg.HasExecuted {
		return true, nil
	}

	if cfg.ScheduledDisableTime == nil {
		// nothing armed yet; keep polling in case an admin configures one
		return false, nil
	}

	now := s.clock.Now()
	if now.Before(*cfg.ScheduledDisableTime) {
		return false, nil
	}

	fired, err := s.store.MarkFired(ctx, now)
	if err != nil {
		return false, err
	}

	if fired {
		if s.prom != nil {
			s.prom.SchedulerFiredTotal.Inc()
		}
		s.log.InfoContext(ctx, "registration auto-disabled",
			"scheduled_for", cfg.ScheduledDisableTime, "fired_at", now)
	}

	// another process may have won the conditional write; either way the flag
	// is down and this loop is finished
	return true, nil
}

// Run polls until the flip happens or ctx is cancelled. Transient storage
// errors are logged and retried on the next tick.
func (s *AutoDisable) Run(ctx context.Context) error {
	done, err := s.RunOnce(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "scheduler evaluation failed", "err", err)
	}
	if done {
		return nil
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "scheduler received shutdown signal")
			return nil

		case <-ticker.C:
			done, err := s.RunOnce(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "scheduler evaluation failed", "err", err)
				continue
			}
			if done {
				return nil
			}
		}
	}
}
