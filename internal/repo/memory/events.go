package memory

import (
	"context"

	"github.com/festlabs/festreg/internal/domain/event"
)

type EventsRepo struct {
	s *Store
}

func (r *EventsRepo) GetByID(_ context.Context, id string) (event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *EventsRepo) ListByIDs(_ context.Context, ids []string) ([]event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.s.events[id]; ok {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (r *EventsRepo) ListEventIDs(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]string, 0, len(r.s.events))
	for id := range r.s.events {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *EventsRepo) RecountParticipants(_ context.Context, eventID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return 0, event.ErrNotFound
	}

	count := 0
	for _, reg := range r.s.regs {
		if reg.EventID == eventID && reg.Counted() {
			count++
		}
	}

	e.CurrentParticipants = count
	return count, nil
}

// ClaimEndpoint mirrors the postgres claim: scan from the cursor, increment
// under the cap, retire on saturation, advance the cursor. All under the
// store lock.
func (r *EventsRepo) ClaimEndpoint(_ context.Context, eventID string) (event.QRCodeEndpoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return event.QRCodeEndpoint{}, event.ErrNotFound
	}

	idx, ok := event.NextEligibleEndpoint(e.QREndpoints, e.CurrentQRIndex)
	if !ok {
		return event.QRCodeEndpoint{}, event.ErrNoEligibleEndpoint
	}

	ep := &e.QREndpoints[idx]
	ep.UsageCount++
	if ep.UsageCount >= ep.MaxUsage {
		ep.IsActive = false
		e.CurrentQRIndex = (idx + 1) % len(e.QREndpoints)
	}

	return *ep, nil
}

func (r *EventsRepo) ActiveEndpoint(_ context.Context, eventID string) (event.QRCodeEndpoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return event.QRCodeEndpoint{}, event.ErrNotFound
	}

	idx, ok := event.NextEligibleEndpoint(e.QREndpoints, e.CurrentQRIndex)
	if !ok {
		return event.QRCodeEndpoint{}, event.ErrNoEligibleEndpoint
	}

	return e.QREndpoints[idx], nil
}
