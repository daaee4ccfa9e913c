package postgres

import (
	"context"
	"errors"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/jackc/pgx/v5"
)

// ClaimEndpoint consumes one usage slot on the event's current eligible
// endpoint. The event row lock serializes claims per event; the usage
// increment itself is still a conditional update so the cap can never be
// overshot. Cursor advance and retirement happen in the same transaction
// (round robin with saturation: an endpoint is reused until exhausted, then
// retired for good).
func (r *EventsRepo) ClaimEndpoint(ctx context.Context, eventID string) (ep event.QRCodeEndpoint, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var cursor int
	err = r.observe("qr_endpoints.claim.lock", func() error {
		return tx.QueryRow(ctx,
			`SELECT current_qr_index FROM events WHERE id = $1 FOR UPDATE`, eventID,
		).Scan(&cursor)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
		}
		return
	}

	endpoints, err := r.endpointsTx(ctx, tx, eventID)
	if err != nil {
		return
	}

	idx, ok := event.NextEligibleEndpoint(endpoints, cursor)
	if !ok {
		err = event.ErrNoEligibleEndpoint
		return
	}

	chosen := endpoints[idx]

	err = r.observe("qr_endpoints.claim.increment", func() error {
		return tx.QueryRow(ctx, `
			UPDATE qr_endpoints
			SET usage_count = usage_count + 1,
			    is_active = (usage_count + 1 < max_usage)
			WHERE id = $1 AND is_active AND usage_count < max_usage
			RETURNING usage_count, max_usage, is_active
		`, chosen.ID).Scan(&chosen.UsageCount, &chosen.MaxUsage, &chosen.IsActive)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// disabled between the scan and the update; with the event row
			// locked this only happens via an out-of-band admin change
			err = event.ErrNoEligibleEndpoint
		}
		return
	}

	if !chosen.IsActive {
		next := (idx + 1) % len(endpoints)
		err = r.observe("qr_endpoints.claim.advance_cursor", func() error {
			_, e := tx.Exec(ctx,
				`UPDATE events SET current_qr_index = $2, updated_at = NOW() WHERE id = $1`,
				eventID, next)
			return e
		})
		if err != nil {
			return
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	ep = chosen
	return
}

// ActiveEndpoint returns the endpoint a registrant should currently pay to,
// without consuming usage. Used to re-display payment details.
func (r *EventsRepo) ActiveEndpoint(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
	var cursor int
	err := r.observe("qr_endpoints.active", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT current_qr_index FROM events WHERE id = $1`, eventID,
		).Scan(&cursor)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.QRCodeEndpoint{}, event.ErrNotFound
		}
		return event.QRCodeEndpoint{}, err
	}

	endpoints, err := r.endpointsTx(ctx, nil, eventID)
	if err != nil {
		return event.QRCodeEndpoint{}, err
	}

	idx, ok := event.NextEligibleEndpoint(endpoints, cursor)
	if !ok {
		return event.QRCodeEndpoint{}, event.ErrNoEligibleEndpoint
	}

	return endpoints[idx], nil
}

// endpointsTx loads an event's endpoints ordered by position, through tx when
// one is open.
func (r *EventsRepo) endpointsTx(ctx context.Context, tx pgx.Tx, eventID string) ([]event.QRCodeEndpoint, error) {
	q := `
		SELECT id, position, account_label, qr_url, usage_count, max_usage, is_active
		FROM qr_endpoints WHERE event_id = $1 ORDER BY position
	`

	var rows pgx.Rows
	var err error
	if tx != nil {
		rows, err = tx.Query(ctx, q, eventID)
	} else {
		rows, err = r.pool.Query(ctx, q, eventID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.QRCodeEndpoint
	for rows.Next() {
		var ep event.QRCodeEndpoint
		if err := rows.Scan(&ep.ID, &ep.Position, &ep.AccountLabel, &ep.QRURL,
			&ep.UsageCount, &ep.MaxUsage, &ep.IsActive); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}
