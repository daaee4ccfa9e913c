package admission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/festlabs/festreg/internal/observability"
)

var ErrRegistrationClosed = errors.New("registration is closed")

// Keep these interfaces small so tests can fake them easily.

type EventsStore interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
	ListByIDs(ctx context.Context, ids []string) ([]event.Event, error)
}

// RegistrationsStore.Create must perform the duplicate check, the conditional
// capacity increment and the insert as one atomic unit; two concurrent calls
// for an event's last slot must not both succeed.
type RegistrationsStore interface {
	Create(ctx context.Context, req registration.CreateRequest) (registration.Registration, error)
	GetByID(ctx context.Context, id string) (registration.Registration, error)
	ListActiveByUser(ctx context.Context, userID string) ([]registration.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to registration.PaymentStatus) error
	Cancel(ctx context.Context, id string) error
}

type SettingsStore interface {
	Load(ctx context.Context) (settings.Scheduler, error)
}

type EndpointAllocator interface {
	Allocate(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
	Active(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
}

var ErrNoEndpointAvailable = errors.New("no payment endpoint available")

// Request is the validated admission input. EventID comes from the route and
// UserID from the identity token, never from the body.
type Request struct {
	EventID  string
	UserID   string
	TeamName string
	Members  []registration.TeamMember
	Category string
}

// Result is a successful admission. ConflictWarning and EndpointWarning are
// advisory; the registration stands regardless.
type Result struct {
	Registration    registration.Registration
	ConflictWarning string
	PaymentEndpoint *event.QRCodeEndpoint
	EndpointWarning string
}

// Service is the only writer path for new registrations.
type Service struct {
	events    EventsStore
	regs      RegistrationsStore
	settings  SettingsStore
	allocator EndpointAllocator
	conflicts ConflictDetector
	log       *slog.Logger
	prom      *observability.Prom
}

func NewService(
	events EventsStore,
	regs RegistrationsStore,
	settingsStore SettingsStore,
	allocator EndpointAllocator,
	conflicts ConflictDetector,
	log *slog.Logger,
	prom *observability.Prom,
) *Service {
	return &Service{
		events:    events,
		regs:      regs,
		settings:  settingsStore,
		allocator: allocator,
		conflicts: conflicts,
		log:       log,
		prom:      prom,
	}
}

func (s *Service) admitted(result string) {
	if s.prom != nil {
		s.prom.AdmissionsTotal.WithLabelValues(result).Inc()
	}
}

// Register runs the full admission pipeline. Steps up to and including the
// registration insert are all-or-nothing; the conflict scan and endpoint
// allocation afterwards are best-effort and only ever add warnings.
func (s *Service) Register(ctx context.Context, req Request) (Result, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.admitted("error")
		return Result{}, err
	}

	if !cfg.RegistrationOpen {
		s.admitted("closed")
		return Result{}, ErrRegistrationClosed
	}

	ev, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		s.admitted("error")
		return Result{}, err
	}

	if err := ValidateTeam(ev, req.Members); err != nil {
		s.admitted("invalid")
		return Result{}, err
	}

	amount, err := ResolveFee(ev, req.Category)
	if err != nil {
		s.admitted("invalid")
		return Result{}, err
	}

	reg, err := s.regs.Create(ctx, registration.CreateRequest{
		EventID:  req.EventID,
		UserID:   req.UserID,
		TeamName: req.TeamName,
		Members:  req.Members,
		Category: req.Category,
		Amount:   amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrEventFull):
			s.admitted("full")
		case errors.Is(err, registration.ErrAlreadyRegistered):
			s.admitted("duplicate")
		default:
			s.admitted("error")
		}
		return Result{}, err
	}

	result := Result{Registration: reg}
	s.admitted("ok")

	result.ConflictWarning = s.conflictWarning(ctx, ev, req.UserID, reg.ID)

	if amount > 0 {
		ep, err := s.allocator.Allocate(ctx, ev.ID)
		if err != nil {
			// The registration already exists; an allocation failure needs an
			// operator, not a rollback.
			s.log.WarnContext(ctx, "payment endpoint allocation failed",
				"event_id", ev.ID, "registration_id", reg.ID, "err", err)
			result.EndpointWarning = ErrNoEndpointAvailable.Error()
		} else {
			result.PaymentEndpoint = &ep
		}
	}

	return result, nil
}

func (s *Service) conflictWarning(ctx context.Context, candidate event.Event, userID, newRegID string) string {
	regs, err := s.regs.ListActiveByUser(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "conflict scan skipped", "user_id", userID, "err", err)
		return ""
	}

	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		if r.ID == newRegID || r.EventID == candidate.ID {
			continue
		}
		ids = append(ids, r.EventID)
	}
	if len(ids) == 0 {
		return ""
	}

	others, err := s.events.ListByIDs(ctx, ids)
	if err != nil {
		s.log.WarnContext(ctx, "conflict scan skipped", "user_id", userID, "err", err)
		return ""
	}

	return s.conflicts.Warning(candidate, others)
}

// ApplyPaymentResult records an externally verified payment transition.
// Re-applying the current status is a no-op so gateway retries stay safe.
func (s *Service) ApplyPaymentResult(ctx context.Context, regID string, to registration.PaymentStatus) (registration.Registration, error) {
	reg, err := s.regs.GetByID(ctx, regID)
	if err != nil {
		return registration.Registration{}, err
	}

	if reg.PaymentStatus == to {
		return reg, nil
	}

	updated, err := reg.ApplyPayment(to)
	if err != nil {
		return registration.Registration{}, err
	}

	// conditional on the status we read, so concurrent transitions cannot
	// silently overwrite each other
	if err := s.regs.UpdatePaymentStatus(ctx, regID, reg.PaymentStatus, to); err != nil {
		return registration.Registration{}, err
	}

	return updated, nil
}

// Cancel withdraws a registration. The capacity slot is released by the next
// reconcile pass; consumed QR usage is never released.
func (s *Service) Cancel(ctx context.Context, regID string) error {
	return s.regs.Cancel(ctx, regID)
}

// GetRegistration returns the registration for status display.
func (s *Service) GetRegistration(ctx context.Context, regID string) (registration.Registration, error) {
	return s.regs.GetByID(ctx, regID)
}
