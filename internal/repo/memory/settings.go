package memory

import (
	"context"
	"time"

	"github.com/festlabs/festreg/internal/domain/settings"
)

type SettingsRepo struct {
	s *Store
}

func (r *SettingsRepo) Load(_ context.Context) (settings.Scheduler, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.scheduler, nil
}

func (r *SettingsRepo) Configure(_ context.Context, disableAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.scheduler.ScheduledDisableTime = disableAt
	r.s.scheduler.HasExecuted = false
	r.s.scheduler.ExecutedAt = nil
	return nil
}

func (r *SettingsRepo) SetRegistrationOpen(_ context.Context, open bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.scheduler.RegistrationOpen = open
	return nil
}

func (r *SettingsRepo) MarkFired(_ context.Context, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.scheduler.HasExecuted {
		return false, nil
	}

	r.s.scheduler.RegistrationOpen = false
	r.s.scheduler.HasExecuted = true
	t := at
	r.s.scheduler.ExecutedAt = &t
	return true, nil
}
