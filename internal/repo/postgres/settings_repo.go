package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepo is the durable settings store behind the registration_open
// gate and the auto-disable scheduler. One row, id always 1.
type SettingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSettingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SettingsRepo {
	return &SettingsRepo{pool: pool, prom: prom}
}

func (repo *SettingsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *SettingsRepo) Load(ctx context.Context) (settings.Scheduler, error) {
	var s settings.Scheduler
	err := repo.observe("settings.load", func() error {
		return repo.pool.QueryRow(ctx, `
			SELECT registration_open, scheduled_disable_time, has_executed, executed_at
			FROM scheduler_settings WHERE id = 1
		`).Scan(&s.RegistrationOpen, &s.ScheduledDisableTime, &s.HasExecuted, &s.ExecutedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Scheduler{}, settings.ErrNotConfigured
		}
		return settings.Scheduler{}, err
	}
	return s, nil
}

// Configure arms (or re-arms) the auto-disable time and clears has_executed
// so the scheduler will fire again at the new instant. Admin-only path.
func (repo *SettingsRepo) Configure(ctx context.Context, disableAt *time.Time) error {
	return repo.observe("settings.configure", func() error {
		_, err := repo.pool.Exec(ctx, `
			UPDATE scheduler_settings
			SET scheduled_disable_time = $1, has_executed = false, executed_at = NULL
			WHERE id = 1
		`, disableAt)
		return err
	})
}

// SetRegistrationOpen flips the gate directly (admin override).
func (repo *SettingsRepo) SetRegistrationOpen(ctx context.Context, open bool) error {
	return repo.observe("settings.set_registration_open", func() error {
		_, err := repo.pool.Exec(ctx, `
			UPDATE scheduler_settings SET registration_open = $1 WHERE id = 1
		`, open)
		return err
	})
}

// MarkFired performs the one durable write of the auto-disable flip. The
// conditional keeps it exactly-once across restarts and across processes
// racing to fire; callers learn whether they won.
func (repo *SettingsRepo) MarkFired(ctx context.Context, at time.Time) (bool, error) {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("settings.mark_fired", func() error {
		tag, err = repo.pool.Exec(ctx, `
			UPDATE scheduler_settings
			SET registration_open = false, has_executed = true, executed_at = $1
			WHERE id = 1 AND has_executed = false
		`, at)
		return err
	})
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}
