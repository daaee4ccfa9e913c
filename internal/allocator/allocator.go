package allocator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/observability"
)

// Store performs the actual claim. ClaimEndpoint must increment usage, retire
// the endpoint when the increment reaches its cap and advance the event's
// cursor, all in one atomic unit; concurrent claims for the last unit of usage
// must not both succeed.
type Store interface {
	ClaimEndpoint(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
	ActiveEndpoint(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
}

// Allocator load-balances payment collection across an event's QR endpoints:
// round robin with saturation. An endpoint keeps receiving registrants until
// its usage cap is hit, then is retired for good and the cursor moves on.
type Allocator struct {
	store Store
	log   *slog.Logger
	prom  *observability.Prom
}

func New(store Store, log *slog.Logger, prom *observability.Prom) *Allocator {
	return &Allocator{store: store, log: log, prom: prom}
}

func (a *Allocator) observe(result string) {
	if a.prom != nil {
		a.prom.QRAllocationsTotal.WithLabelValues(result).Inc()
	}
}

// Allocate claims one usage slot on the event's current eligible endpoint.
func (a *Allocator) Allocate(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
	ep, err := a.store.ClaimEndpoint(ctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNoEligibleEndpoint) {
			a.observe("exhausted")
		} else {
			a.observe("error")
		}
		return event.QRCodeEndpoint{}, err
	}

	a.observe("ok")
	a.log.DebugContext(ctx, "payment endpoint allocated",
		"event_id", eventID, "endpoint_id", ep.ID, "usage", ep.UsageCount, "max_usage", ep.MaxUsage)

	return ep, nil
}

// Active returns the current eligible endpoint without consuming usage, for
// re-displaying payment details to someone who already registered.
func (a *Allocator) Active(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
	return a.store.ActiveEndpoint(ctx, eventID)
}
