package admission_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/festlabs/festreg/internal/admission"
	"github.com/festlabs/festreg/internal/allocator"
	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
	"github.com/festlabs/festreg/internal/repo/memory"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAllocator struct {
	allocateFn func(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
	activeFn   func(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
}

func (f *fakeAllocator) Allocate(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
	if f.allocateFn != nil {
		return f.allocateFn(ctx, eventID)
	}
	return event.QRCodeEndpoint{}, nil
}

func (f *fakeAllocator) Active(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
	if f.activeFn != nil {
		return f.activeFn(ctx, eventID)
	}
	return event.QRCodeEndpoint{}, nil
}

func seedEvent(store *memory.Store, mutate func(*event.Event)) event.Event {
	e := event.Event{
		ID:              uuid.NewString(),
		Title:           "Battle of the Bands",
		StartAt:         time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
		RegistrationFee: 250,
		TeamSize:        event.TeamSize{Min: 1, Max: 1},
		MaxParticipants: 100,
		QREndpoints: []event.QRCodeEndpoint{
			{ID: uuid.NewString(), Position: 0, AccountLabel: "till-1", QRURL: "https://pay.example.com/1", MaxUsage: 50, IsActive: true},
		},
	}
	if mutate != nil {
		mutate(&e)
	}
	store.PutEvent(e)
	return e
}

func newService(store *memory.Store, alloc admission.EndpointAllocator) *admission.Service {
	if alloc == nil {
		alloc = allocator.New(store.Events, discardLogger(), nil)
	}
	return admission.NewService(
		store.Events,
		store.Registrations,
		store.Settings,
		alloc,
		admission.ConflictDetector{},
		discardLogger(),
		nil,
	)
}

func oneMember() []registration.TeamMember {
	return []registration.TeamMember{{
		Name:  "Asha Rao",
		Email: "asha@example.com",
		Phone: "5550001111",
	}}
}

func TestRegister_Success(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)
	svc := newService(store, nil)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := res.Registration
	if reg.Amount != 250 {
		t.Fatalf("got amount %d, want 250", reg.Amount)
	}
	if reg.PaymentStatus != registration.PaymentPending {
		t.Fatalf("got payment status %s, want pending", reg.PaymentStatus)
	}
	if res.PaymentEndpoint == nil {
		t.Fatalf("expected a payment endpoint for a paid event")
	}
	if res.PaymentEndpoint.AccountLabel != "till-1" {
		t.Fatalf("got endpoint %q, want till-1", res.PaymentEndpoint.AccountLabel)
	}

	// the slot is taken
	stored, err := store.Events.GetByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.CurrentParticipants != 1 {
		t.Fatalf("got %d participants, want 1", stored.CurrentParticipants)
	}
}

func TestRegister_FreeEventSkipsPayment(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, func(e *event.Event) { e.RegistrationFee = 0 })

	called := false
	alloc := &fakeAllocator{
		allocateFn: func(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
			called = true
			return event.QRCodeEndpoint{}, nil
		},
	}
	svc := newService(store, alloc)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Registration.PaymentStatus != registration.PaymentNone {
		t.Fatalf("got %s, want none", res.Registration.PaymentStatus)
	}
	if res.PaymentEndpoint != nil || called {
		t.Fatalf("free event must not touch the allocator")
	}
}

func TestRegister_Closed(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)
	if err := store.Settings.SetRegistrationOpen(context.Background(), false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := newService(store, nil)

	_, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if !errors.Is(err, admission.ErrRegistrationClosed) {
		t.Fatalf("got %v, want ErrRegistrationClosed", err)
	}
}

func TestRegister_EventNotFound(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, nil)

	_, err := svc.Register(context.Background(), admission.Request{
		EventID: uuid.NewString(),
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)
	svc := newService(store, nil)

	userID := uuid.NewString()
	req := admission.Request{EventID: e.ID, UserID: userID, Members: oneMember()}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, registration.ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegister_Full(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, func(e *event.Event) {
		e.MaxParticipants = 1
		e.CurrentParticipants = 1
	})
	svc := newService(store, nil)

	_, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if !errors.Is(err, registration.ErrEventFull) {
		t.Fatalf("got %v, want ErrEventFull", err)
	}
}

func TestRegister_TeamValidationRejected(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, func(e *event.Event) {
		e.TeamSize = event.TeamSize{Min: 2, Max: 4}
	})
	svc := newService(store, nil)

	_, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(), // below min
	})
	if !errors.Is(err, admission.ErrTeamSizeViolation) {
		t.Fatalf("got %v, want ErrTeamSizeViolation", err)
	}

	// nothing was admitted
	stored, _ := store.Events.GetByID(context.Background(), e.ID)
	if stored.CurrentParticipants != 0 {
		t.Fatalf("rejected registration consumed a slot")
	}
}

func TestRegister_AllocatorFailureIsWarningOnly(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)

	alloc := &fakeAllocator{
		allocateFn: func(ctx context.Context, eventID string) (event.QRCodeEndpoint, error) {
			return event.QRCodeEndpoint{}, event.ErrNoEligibleEndpoint
		},
	}
	svc := newService(store, alloc)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID,
		UserID:  uuid.NewString(),
		Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("allocation failure must not fail admission: %v", err)
	}
	if res.EndpointWarning == "" {
		t.Fatalf("expected endpoint warning")
	}
	if res.PaymentEndpoint != nil {
		t.Fatalf("expected no endpoint on allocation failure")
	}
	if res.Registration.ID == "" {
		t.Fatalf("registration should stand")
	}
}

func TestRegister_ConflictWarning(t *testing.T) {
	store := memory.NewStore()

	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	first := seedEvent(store, func(e *event.Event) {
		e.Title = "Jazz Night"
		e.StartAt = start
		e.EndAt = &end
		e.RegistrationFee = 0
	})
	overlapping := seedEvent(store, func(e *event.Event) {
		e.Title = "Folk Fusion"
		e.StartAt = start.Add(time.Hour)
		e2 := end.Add(time.Hour)
		e.EndAt = &e2
		e.RegistrationFee = 0
	})

	svc := newService(store, nil)
	userID := uuid.NewString()

	if _, err := svc.Register(context.Background(), admission.Request{
		EventID: first.ID, UserID: userID, Members: oneMember(),
	}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: overlapping.ID, UserID: userID, Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("overlap must not block admission: %v", err)
	}
	if res.ConflictWarning == "" {
		t.Fatalf("expected conflict warning")
	}
}

func TestRegister_LastSlotRace(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, func(e *event.Event) {
		e.MaxParticipants = 1
		e.RegistrationFee = 0
	})
	svc := newService(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), admission.Request{
				EventID: e.ID,
				UserID:  uuid.NewString(),
				Members: oneMember(),
			})
		}()
	}
	wg.Wait()

	var wins, fulls int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, registration.ErrEventFull):
			fulls++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || fulls != 1 {
		t.Fatalf("got %d wins and %d full, want exactly one of each", wins, fulls)
	}

	stored, _ := store.Events.GetByID(context.Background(), e.ID)
	if stored.CurrentParticipants != 1 {
		t.Fatalf("got %d participants, want 1", stored.CurrentParticipants)
	}
}

func TestApplyPaymentResult(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)
	svc := newService(store, nil)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID, UserID: uuid.NewString(), Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	regID := res.Registration.ID

	if _, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentVerificationPending); err != nil {
		t.Fatalf("pending -> verification_pending failed: %v", err)
	}

	updated, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentCompleted)
	if err != nil {
		t.Fatalf("verification_pending -> completed failed: %v", err)
	}
	if updated.PaymentStatus != registration.PaymentCompleted {
		t.Fatalf("got %s, want completed", updated.PaymentStatus)
	}

	// gateway retry: replaying the terminal status is a no-op
	again, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentCompleted)
	if err != nil {
		t.Fatalf("replay should be idempotent: %v", err)
	}
	if again.PaymentStatus != registration.PaymentCompleted {
		t.Fatalf("got %s, want completed", again.PaymentStatus)
	}

	// completed is terminal
	if _, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentFailed); !errors.Is(err, registration.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestCancel(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, func(e *event.Event) { e.RegistrationFee = 0 })
	svc := newService(store, nil)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID, UserID: uuid.NewString(), Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := svc.Cancel(context.Background(), res.Registration.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	reg, err := svc.GetRegistration(context.Background(), res.Registration.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reg.Status != registration.StatusCancelled {
		t.Fatalf("got status %s, want cancelled", reg.Status)
	}

	// the cached counter is untouched until the reconciler runs
	stored, _ := store.Events.GetByID(context.Background(), e.ID)
	if stored.CurrentParticipants != 1 {
		t.Fatalf("cancel must not release the slot directly, got %d", stored.CurrentParticipants)
	}
}

func TestCancel_CompletedRejected(t *testing.T) {
	store := memory.NewStore()
	e := seedEvent(store, nil)
	svc := newService(store, nil)

	res, err := svc.Register(context.Background(), admission.Request{
		EventID: e.ID, UserID: uuid.NewString(), Members: oneMember(),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	regID := res.Registration.ID

	if _, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentVerificationPending); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if _, err := svc.ApplyPaymentResult(context.Background(), regID, registration.PaymentCompleted); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if err := svc.Cancel(context.Background(), regID); !errors.Is(err, registration.ErrCancelCompleted) {
		t.Fatalf("got %v, want ErrCancelCompleted", err)
	}
}
