package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

const regColumns = `id, registration_number, event_id, user_id, team_name,
	members, category, amount, status, payment_status, created_at, updated_at`

func scanRegistration(row pgx.Row) (registration.Registration, error) {
	var r registration.Registration
	var membersRaw []byte

	err := row.Scan(
		&r.ID, &r.RegistrationNumber, &r.EventID, &r.UserID, &r.TeamName,
		&membersRaw, &r.Category, &r.Amount, &r.Status, &r.PaymentStatus,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return registration.Registration{}, err
	}

	if len(membersRaw) > 0 {
		if err := json.Unmarshal(membersRaw, &r.Members); err != nil {
			return registration.Registration{}, err
		}
	}
	return r, nil
}

// Create admits one registration: duplicate check, conditional capacity
// increment and insert in a single transaction. The capacity step is an
// "increment only if below cap" update, never read-then-write, so two
// concurrent requests for the last slot cannot both succeed.
func (repo *RegistrationsRepo) Create(ctx context.Context, req registration.CreateRequest) (reg registration.Registration, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = repo.observe("registrations.create.duplicate_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE event_id = $1 AND user_id = $2
			  AND status = 'active' AND payment_status <> 'failed'
		)`, req.EventID, req.UserID).Scan(&exists)
	})
	if err != nil {
		return
	}

	if exists {
		err = registration.ErrAlreadyRegistered
		return
	}

	var tag pgconn.CommandTag
	err = repo.observe("registrations.create.capacity_increment", func() error {
		var e error
		tag, e = tx.Exec(ctx, `
			UPDATE events
			SET current_participants = current_participants + 1, updated_at = NOW()
			WHERE id = $1 AND current_participants < max_participants
		`, req.EventID)
		return e
	})
	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		// either the event is gone or it is full; tell them apart
		var dummy string
		err = tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, req.EventID).Scan(&dummy)
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
			return
		}
		if err != nil {
			return
		}
		err = registration.ErrEventFull
		return
	}

	reg, err = repo.insertTx(ctx, tx, req)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	if err != nil {
		reg = registration.Registration{}
		return
	}

	return
}

func (repo *RegistrationsRepo) insertTx(ctx context.Context, tx pgx.Tx, req registration.CreateRequest) (registration.Registration, error) {
	// registration numbers are short; retry the rare collision once
	for attempt := 0; ; attempt++ {
		reg := registration.NewFromCreateRequest(req)

		members, err := json.Marshal(reg.Members)
		if err != nil {
			return registration.Registration{}, err
		}

		err = repo.observe("registrations.create.insert", func() error {
			_, e := tx.Exec(ctx, `
				INSERT INTO registrations (id, registration_number, event_id, user_id,
					team_name, members, category, amount, status, payment_status,
					created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12)
			`, reg.ID, reg.RegistrationNumber, reg.EventID, reg.UserID,
				reg.TeamName, string(members), reg.Category, reg.Amount,
				string(reg.Status), string(reg.PaymentStatus), reg.CreatedAt, reg.UpdatedAt)
			return e
		})
		if err == nil {
			return reg, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "registrations_event_user_active_uniq":
				return registration.Registration{}, registration.ErrAlreadyRegistered
			case "registrations_registration_number_key":
				if attempt == 0 {
					continue
				}
			}
		}
		return registration.Registration{}, err
	}
}

func (repo *RegistrationsRepo) GetByID(ctx context.Context, id string) (registration.Registration, error) {
	var r registration.Registration
	err := repo.observe("registrations.get_by_id", func() error {
		var scanErr error
		r, scanErr = scanRegistration(repo.pool.QueryRow(ctx,
			`SELECT `+regColumns+` FROM registrations WHERE id = $1`, id))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}
	return r, nil
}

func (repo *RegistrationsRepo) ListActiveByUser(ctx context.Context, userID string) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_active_by_user", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT `+regColumns+`
			FROM registrations
			WHERE user_id = $1 AND status = 'active' AND payment_status <> 'failed'
			ORDER BY created_at ASC, id ASC
		`, userID)
		return err
	})
	if err != nil {
		return
	}

	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		r, e := scanRegistration(rows)
		if e != nil {
			err = e
			return
		}
		regs = append(regs, r)
	}

	err = rows.Err()
	return
}

func (repo *RegistrationsRepo) ListByEvent(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_by_event", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT `+regColumns+`
			FROM registrations
			WHERE event_id = $1
			ORDER BY created_at ASC, id ASC
		`, eventID)
		return err
	})
	if err != nil {
		return
	}

	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		r, e := scanRegistration(rows)
		if e != nil {
			err = e
			return
		}
		regs = append(regs, r)
	}

	if err = rows.Err(); err != nil {
		return
	}

	// a 404 is better than an empty list when the event itself does not exist
	if len(regs) == 0 {
		var dummy string
		err = repo.observe("registrations.list_by_event.check_event_exists", func() error {
			return repo.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, eventID).Scan(&dummy)
		})
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
			return
		}
		if err != nil {
			return
		}
	}

	return
}

// UpdatePaymentStatus applies one externally triggered transition,
// conditional on the status the caller read so concurrent transitions cannot
// silently overwrite each other.
func (repo *RegistrationsRepo) UpdatePaymentStatus(ctx context.Context, id string, from, to registration.PaymentStatus) error {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("registrations.update_payment_status", func() error {
		tag, err = repo.pool.Exec(ctx, `
			UPDATE registrations
			SET payment_status = $3, updated_at = NOW()
			WHERE id = $1 AND payment_status = $2
		`, id, string(from), string(to))
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		// row gone, or someone else transitioned first
		var current string
		err = repo.pool.QueryRow(ctx,
			`SELECT payment_status FROM registrations WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.ErrNotFound
		}
		if err != nil {
			return err
		}
		if registration.PaymentStatus(current) == to {
			return nil
		}
		return registration.ErrInvalidTransition
	}

	return nil
}

// Cancel withdraws a registration. Completed registrations stay put; the
// capacity slot is released by the next reconcile pass, never here.
func (repo *RegistrationsRepo) Cancel(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("registrations.cancel", func() error {
		tag, err = repo.pool.Exec(ctx, `
			UPDATE registrations
			SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'active' AND payment_status <> 'completed'
		`, id)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var status, payment string
		err = repo.pool.QueryRow(ctx,
			`SELECT status, payment_status FROM registrations WHERE id = $1`, id).Scan(&status, &payment)
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.ErrNotFound
		}
		if err != nil {
			return err
		}
		if registration.PaymentStatus(payment) == registration.PaymentCompleted {
			return registration.ErrCancelCompleted
		}
		// already cancelled; idempotent
		return nil
	}

	return nil
}
