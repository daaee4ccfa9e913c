package memory

import (
	"context"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
)

type RegistrationsRepo struct {
	s *Store
}

// Create mirrors the postgres transaction: duplicate check, capacity
// check-and-increment and insert under one lock.
func (r *RegistrationsRepo) Create(_ context.Context, req registration.CreateRequest) (registration.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[req.EventID]
	if !ok {
		return registration.Registration{}, event.ErrNotFound
	}

	for _, existing := range r.s.regs {
		if existing.EventID == req.EventID && existing.UserID == req.UserID && existing.Counted() {
			return registration.Registration{}, registration.ErrAlreadyRegistered
		}
	}

	if e.CurrentParticipants >= e.MaxParticipants {
		return registration.Registration{}, registration.ErrEventFull
	}

	e.CurrentParticipants++

	reg := registration.NewFromCreateRequest(req)
	cp := reg
	r.s.regs[reg.ID] = &cp

	return reg, nil
}

func (r *RegistrationsRepo) GetByID(_ context.Context, id string) (registration.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reg, ok := r.s.regs[id]
	if !ok {
		return registration.Registration{}, registration.ErrNotFound
	}
	return *reg, nil
}

func (r *RegistrationsRepo) ListActiveByUser(_ context.Context, userID string) ([]registration.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []registration.Registration
	for _, reg := range r.s.regs {
		if reg.UserID == userID && reg.Counted() {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (r *RegistrationsRepo) UpdatePaymentStatus(_ context.Context, id string, from, to registration.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reg, ok := r.s.regs[id]
	if !ok {
		return registration.ErrNotFound
	}

	if reg.PaymentStatus != from {
		if reg.PaymentStatus == to {
			return nil
		}
		return registration.ErrInvalidTransition
	}

	reg.PaymentStatus = to
	return nil
}

func (r *RegistrationsRepo) Cancel(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reg, ok := r.s.regs[id]
	if !ok {
		return registration.ErrNotFound
	}

	if reg.PaymentStatus == registration.PaymentCompleted {
		return registration.ErrCancelCompleted
	}

	reg.Status = registration.StatusCancelled
	return nil
}
