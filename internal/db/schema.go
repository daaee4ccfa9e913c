package db

import (
	"context"
	"time"

	"github.com/festlabs/festreg/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Small enough schema to bootstrap in-process instead of carrying a
// migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                   UUID PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	venue                TEXT NOT NULL DEFAULT '',
	start_at             TIMESTAMPTZ NOT NULL,
	end_at               TIMESTAMPTZ,
	registration_fee     BIGINT NOT NULL DEFAULT 0,
	team_min             INT NOT NULL DEFAULT 1,
	team_max             INT NOT NULL DEFAULT 1,
	max_participants     INT NOT NULL,
	current_participants INT NOT NULL DEFAULT 0,
	current_qr_index     INT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS registration_categories (
	event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	fee      BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (event_id, name)
);

CREATE TABLE IF NOT EXISTS qr_endpoints (
	id            UUID PRIMARY KEY,
	event_id      UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	position      INT NOT NULL,
	account_label TEXT NOT NULL,
	qr_url        TEXT NOT NULL,
	usage_count   INT NOT NULL DEFAULT 0,
	max_usage     INT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (event_id, position),
	CHECK (usage_count <= max_usage)
);

CREATE TABLE IF NOT EXISTS registrations (
	id                  UUID PRIMARY KEY,
	registration_number TEXT NOT NULL UNIQUE,
	event_id            UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	user_id             TEXT NOT NULL,
	team_name           TEXT NOT NULL DEFAULT '',
	members             JSONB NOT NULL DEFAULT '[]',
	category            TEXT NOT NULL DEFAULT '',
	amount              BIGINT NOT NULL DEFAULT 0,
	status              TEXT NOT NULL DEFAULT 'active',
	payment_status      TEXT NOT NULL DEFAULT 'pending',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS registrations_event_user_active_uniq
	ON registrations (event_id, user_id)
	WHERE status = 'active' AND payment_status <> 'failed';

CREATE INDEX IF NOT EXISTS registrations_user_idx ON registrations (user_id);

CREATE TABLE IF NOT EXISTS scheduler_settings (
	id                     SMALLINT PRIMARY KEY DEFAULT 1,
	registration_open      BOOLEAN NOT NULL DEFAULT TRUE,
	scheduled_disable_time TIMESTAMPTZ,
	has_executed           BOOLEAN NOT NULL DEFAULT FALSE,
	executed_at            TIMESTAMPTZ,
	CHECK (id = 1)
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// EnsureSchedulerSettings seeds the single settings row. An env-provided
// disable time only arms the scheduler when nothing is configured yet, so a
// redeploy cannot silently re-arm a fired scheduler.
func EnsureSchedulerSettings(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	var disableAt *time.Time
	if !cfg.ScheduledDisableTime.IsZero() {
		t := cfg.ScheduledDisableTime
		disableAt = &t
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO scheduler_settings (id, registration_open, scheduled_disable_time, has_executed)
		VALUES (1, TRUE, $1, FALSE)
		ON CONFLICT (id) DO NOTHING
	`, disableAt)
	return err
}
