package reconcile

import (
	"context"
	"log/slog"

	"github.com/festlabs/festreg/internal/observability"
)

// Store recomputes an event's participant count from its active, non-failed
// registrations and overwrites the cached field in one statement.
type Store interface {
	RecountParticipants(ctx context.Context, eventID string) (int, error)
	ListEventIDs(ctx context.Context) ([]string, error)
}

// Reconciler corrects drift in Event.CurrentParticipants left behind by
// cancellations, failed payments or manual edits. It is never consulted for
// point-in-time admission decisions; the admission path uses its own atomic
// increment.
type Reconciler struct {
	store Store
	log   *slog.Logger
	prom  *observability.Prom
}

func New(store Store, log *slog.Logger, prom *observability.Prom) *Reconciler {
	return &Reconciler{store: store, log: log, prom: prom}
}

func (r *Reconciler) observe(result string) {
	if r.prom != nil {
		r.prom.ReconcileRunsTotal.WithLabelValues(result).Inc()
	}
}

// Reconcile recomputes one event's counter and returns the authoritative count.
func (r *Reconciler) Reconcile(ctx context.Context, eventID string) (int, error) {
	count, err := r.store.RecountParticipants(ctx, eventID)
	if err != nil {
		r.observe("error")
		return 0, err
	}

	r.observe("ok")
	r.log.InfoContext(ctx, "participant count reconciled", "event_id", eventID, "count", count)
	return count, nil
}

// ReconcileAll sweeps every event; used by the periodic job. Individual
// failures are logged and do not stop the sweep.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	ids, err := r.store.ListEventIDs(ctx)
	if err != nil {
		r.observe("error")
		return err
	}

	for _, id := range ids {
		if _, err := r.Reconcile(ctx, id); err != nil {
			r.log.ErrorContext(ctx, "reconcile failed", "event_id", id, "err", err)
		}
	}
	return nil
}
