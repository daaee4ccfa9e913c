package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/festlabs/festreg/internal/repo/memory"
	"github.com/festlabs/festreg/internal/scheduler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newAutoDisable(store scheduler.Store, clock scheduler.Clock) *scheduler.AutoDisable {
	return scheduler.New(scheduler.Config{PollInterval: time.Minute}, store, clock, discardLogger(), nil)
}

func TestRunOnce_NothingArmed(t *testing.T) {
	store := memory.NewStore()
	s := newAutoDisable(store.Settings, &fakeClock{now: time.Now()})

	done, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatalf("unarmed scheduler should keep polling")
	}

	cfg, _ := store.Settings.Load(context.Background())
	if !cfg.RegistrationOpen {
		t.Fatalf("registration flipped without a schedule")
	}
}

func TestRunOnce_FutureDeadline(t *testing.T) {
	store := memory.NewStore()
	deadline := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	if err := store.Settings.Configure(context.Background(), &deadline); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := &fakeClock{now: deadline.Add(-time.Hour)}
	s := newAutoDisable(store.Settings, clock)

	done, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatalf("deadline not reached, should keep polling")
	}

	cfg, _ := store.Settings.Load(context.Background())
	if !cfg.RegistrationOpen || cfg.HasExecuted {
		t.Fatalf("fired early: %+v", cfg)
	}
}

func TestRunOnce_FiresAtDeadline(t *testing.T) {
	store := memory.NewStore()
	deadline := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	if err := store.Settings.Configure(context.Background(), &deadline); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := &fakeClock{now: deadline}
	s := newAutoDisable(store.Settings, clock)

	done, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatalf("expected done after firing")
	}

	cfg, _ := store.Settings.Load(context.Background())
	if cfg.RegistrationOpen {
		t.Fatalf("registration still open after deadline")
	}
	if !cfg.HasExecuted || cfg.ExecutedAt == nil {
		t.Fatalf("execution not recorded: %+v", cfg)
	}
}

// A deadline missed while no process was running fires on the first
// evaluation after startup.
func TestRunOnce_MissedDeadlineFiresOnStartup(t *testing.T) {
	store := memory.NewStore()
	deadline := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	if err := store.Settings.Configure(context.Background(), &deadline); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := &fakeClock{now: deadline.Add(48 * time.Hour)}
	s := newAutoDisable(store.Settings, clock)

	done, err := s.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("got (%v, %v), want fired", done, err)
	}

	cfg, _ := store.Settings.Load(context.Background())
	if cfg.RegistrationOpen {
		t.Fatalf("missed deadline did not close registration")
	}
}

func TestRunOnce_ExactlyOnceAcrossRestarts(t *testing.T) {
	store := memory.NewStore()
	deadline := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	if err := store.Settings.Configure(context.Background(), &deadline); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := &fakeClock{now: deadline.Add(time.Minute)}

	first := newAutoDisable(store.Settings, clock)
	if done, err := first.RunOnce(context.Background()); err != nil || !done {
		t.Fatalf("first run: got (%v, %v)", done, err)
	}

	cfg, _ := store.Settings.Load(context.Background())
	firstExecutedAt := *cfg.ExecutedAt

	// an admin reopens manually; a restarted process must not flip it back
	if err := store.Settings.SetRegistrationOpen(context.Background(), true); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	second := newAutoDisable(store.Settings, clock)
	if done, err := second.RunOnce(context.Background()); err != nil || !done {
		t.Fatalf("second run: got (%v, %v)", done, err)
	}

	cfg, _ = store.Settings.Load(context.Background())
	if !cfg.RegistrationOpen {
		t.Fatalf("already-executed schedule fired again")
	}
	if !cfg.ExecutedAt.Equal(firstExecutedAt) {
		t.Fatalf("executed_at rewritten: %v -> %v", firstExecutedAt, cfg.ExecutedAt)
	}
}

func TestRunOnce_RearmFiresAgain(t *testing.T) {
	store := memory.NewStore()
	first := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	if err := store.Settings.Configure(context.Background(), &first); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock := &fakeClock{now: first.Add(time.Minute)}
	s := newAutoDisable(store.Settings, clock)

	if done, _ := s.RunOnce(context.Background()); !done {
		t.Fatalf("first deadline did not fire")
	}

	// re-arming clears has_executed; the new deadline is live again
	second := first.Add(24 * time.Hour)
	if err := store.Settings.Configure(context.Background(), &second); err != nil {
		t.Fatalf("re-arm: %v", err)
	}
	if err := store.Settings.SetRegistrationOpen(context.Background(), true); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	clock.now = second.Add(time.Minute)
	done, err := s.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("re-armed deadline: got (%v, %v)", done, err)
	}

	cfg, _ := store.Settings.Load(context.Background())
	if cfg.RegistrationOpen {
		t.Fatalf("re-armed deadline did not close registration")
	}
}

type failingStore struct {
	loadErr error
	inner   scheduler.Store
}

func (f *failingStore) Load(ctx context.Context) (settings.Scheduler, error) {
	if f.loadErr != nil {
		return settings.Scheduler{}, f.loadErr
	}
	return f.inner.Load(ctx)
}

func (f *failingStore) MarkFired(ctx context.Context, at time.Time) (bool, error) {
	return f.inner.MarkFired(ctx, at)
}

func TestRunOnce_StorageErrorLeavesStateAlone(t *testing.T) {
	store := memory.NewStore()
	deadline := time.Now().Add(-time.Hour)
	if err := store.Settings.Configure(context.Background(), &deadline); err != nil {
		t.Fatalf("seed: %v", err)
	}

	failing := &failingStore{loadErr: errors.New("db down"), inner: store.Settings}
	s := newAutoDisable(failing, &fakeClock{now: time.Now()})

	done, err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected storage error")
	}
	if done {
		t.Fatalf("errored evaluation must not report done")
	}

	cfg, _ := store.Settings.Load(context.Background())
	if cfg.HasExecuted {
		t.Fatalf("fired despite load failure")
	}
}
