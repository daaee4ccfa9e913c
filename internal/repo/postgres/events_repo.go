package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// constructor function

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const eventColumns = `id, title, description, venue, start_at, end_at,
	registration_fee, team_min, team_max, max_participants, current_participants,
	current_qr_index, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Venue, &e.StartAt, &e.EndAt,
		&e.RegistrationFee, &e.TeamSize.Min, &e.TeamSize.Max,
		&e.MaxParticipants, &e.CurrentParticipants,
		&e.CurrentQRIndex, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest) (ev event.Event, err error) {
	e := event.NewFromCreateRequest(req)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("events.create", func() error {
		_, e2 := tx.Exec(ctx, `
			INSERT INTO events (id, title, description, venue, start_at, end_at,
				registration_fee, team_min, team_max, max_participants,
				current_participants, current_qr_index, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,0,$11,$12)
		`, e.ID, e.Title, e.Description, e.Venue, e.StartAt, e.EndAt,
			e.RegistrationFee, e.TeamSize.Min, e.TeamSize.Max, e.MaxParticipants,
			e.CreatedAt, e.UpdatedAt)
		return e2
	})
	if err != nil {
		return
	}

	for _, c := range e.Categories {
		if _, err = tx.Exec(ctx, `
			INSERT INTO registration_categories (event_id, name, fee) VALUES ($1,$2,$3)
		`, e.ID, c.Name, c.Fee); err != nil {
			return
		}
	}

	for _, ep := range e.QREndpoints {
		if _, err = tx.Exec(ctx, `
			INSERT INTO qr_endpoints (id, event_id, position, account_label, qr_url,
				usage_count, max_usage, is_active)
			VALUES ($1,$2,$3,$4,$5,0,$6,true)
		`, ep.ID, e.ID, ep.Position, ep.AccountLabel, ep.QRURL, ep.MaxUsage); err != nil {
			return
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	ev = e
	return
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event
	err := r.observe("events.get_by_id", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	if err := r.loadCategories(ctx, &e); err != nil {
		return event.Event{}, err
	}
	if err := r.loadEndpoints(ctx, &e); err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) loadCategories(ctx context.Context, e *event.Event) error {
	rows, err := r.pool.Query(ctx,
		`SELECT name, fee FROM registration_categories WHERE event_id = $1 ORDER BY name`, e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c event.RegistrationCategory
		if err := rows.Scan(&c.Name, &c.Fee); err != nil {
			return err
		}
		e.Categories = append(e.Categories, c)
	}
	return rows.Err()
}

func (r *EventsRepo) loadEndpoints(ctx context.Context, e *event.Event) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, position, account_label, qr_url, usage_count, max_usage, is_active
		FROM qr_endpoints WHERE event_id = $1 ORDER BY position
	`, e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ep event.QRCodeEndpoint
		if err := rows.Scan(&ep.ID, &ep.Position, &ep.AccountLabel, &ep.QRURL,
			&ep.UsageCount, &ep.MaxUsage, &ep.IsActive); err != nil {
			return err
		}
		e.QREndpoints = append(e.QREndpoints, ep)
	}
	return rows.Err()
}

func (r *EventsRepo) List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
	baseQuery := `SELECT ` + eventColumns + `, COUNT(*) OVER() AS total FROM events`

	var conds []string
	var args []interface{}

	argsPosition := 1

	if filter.Venue != nil {
		conds = append(conds, fmt.Sprintf("venue = $%d", argsPosition))
		args = append(args, *filter.Venue)
		argsPosition++
	}

	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("start_at >= $%d", argsPosition))
		args = append(args, *filter.From)
		argsPosition++
	}

	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("start_at <= $%d", argsPosition))
		args = append(args, *filter.To)
		argsPosition++
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY start_at ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	output := make([]event.Event, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var e event.Event
		var t int
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.Venue, &e.StartAt, &e.EndAt,
			&e.RegistrationFee, &e.TeamSize.Min, &e.TeamSize.Max,
			&e.MaxParticipants, &e.CurrentParticipants,
			&e.CurrentQRIndex, &e.CreatedAt, &e.UpdatedAt, &t,
		); err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

// ListByIDs fetches the events behind a user's other registrations for the
// conflict scan. Categories/endpoints are not needed there and stay unloaded.
func (r *EventsRepo) ListByIDs(ctx context.Context, ids []string) ([]event.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]event.Event, 0, len(ids))
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx, `
			UPDATE events
			SET title = $2,
				description = $3,
				venue = $4,
				start_at = $5,
				end_at = $6,
				registration_fee = $7,
				team_min = $8,
				team_max = $9,
				max_participants = $10,
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+eventColumns,
			id, req.Title, req.Description, req.Venue, req.StartAt, req.EndAt,
			req.RegistrationFee, req.TeamMin, req.TeamMax, req.MaxParticipants))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	// replace fee tiers wholesale; QR endpoints are managed separately so
	// usage counters survive event edits
	if _, err := r.pool.Exec(ctx, `DELETE FROM registration_categories WHERE event_id = $1`, id); err != nil {
		return event.Event{}, err
	}
	for _, c := range req.Categories {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO registration_categories (event_id, name, fee) VALUES ($1,$2,$3)
		`, id, c.Name, c.Fee); err != nil {
			return event.Event{}, err
		}
		e.Categories = append(e.Categories, event.RegistrationCategory{Name: c.Name, Fee: c.Fee})
	}

	return e, nil
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return event.ErrNotFound
	}

	return nil
}

// RecountParticipants overwrites the cached counter with the authoritative
// count of active, non-failed registrations in a single statement.
func (r *EventsRepo) RecountParticipants(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.observe("events.recount_participants", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE events e
			SET current_participants = (
				SELECT COUNT(*) FROM registrations reg
				WHERE reg.event_id = e.id
				  AND reg.status = 'active'
				  AND reg.payment_status <> 'failed'
			),
			updated_at = NOW()
			WHERE e.id = $1
			RETURNING current_participants
		`, eventID).Scan(&count)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, event.ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

func (r *EventsRepo) ListEventIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM events ORDER BY start_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
