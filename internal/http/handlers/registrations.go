package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/festlabs/festreg/internal/admission"
	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
	"github.com/festlabs/festreg/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Admitter is the slice of the admission service the handler needs; tests
// fake it.
type Admitter interface {
	Register(ctx context.Context, req admission.Request) (admission.Result, error)
	ApplyPaymentResult(ctx context.Context, regID string, to registration.PaymentStatus) (registration.Registration, error)
	Cancel(ctx context.Context, regID string) error
	GetRegistration(ctx context.Context, regID string) (registration.Registration, error)
}

type EndpointReader interface {
	Active(ctx context.Context, eventID string) (event.QRCodeEndpoint, error)
}

// RegistrationsLister backs the admin roster view. It is a plain storage
// read, so it bypasses the admission service.
type RegistrationsLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type RegistrationsHandler struct {
	svc       Admitter
	endpoints EndpointReader
	lister    RegistrationsLister
	log       *slog.Logger
}

func NewRegistrationsHandler(svc Admitter, endpoints EndpointReader, lister RegistrationsLister, log *slog.Logger) *RegistrationsHandler {
	return &RegistrationsHandler{svc: svc, endpoints: endpoints, lister: lister, log: log}
}

type RegisterRequest struct {
	TeamName             string                    `json:"teamName" binding:"omitempty,min=2,max=120"`
	TeamMembers          []registration.TeamMember `json:"teamMembers" binding:"required,min=1,dive"`
	RegistrationCategory string                    `json:"registrationCategory" binding:"omitempty,min=1,max=80"`
}

type RegisterResponse struct {
	RegistrationID     string               `json:"registrationId"`
	RegistrationNumber string               `json:"registrationNumber"`
	Amount             int64                `json:"amount"`
	PaymentStatus      string               `json:"paymentStatus"`
	ConflictWarning    string               `json:"conflictWarning,omitempty"`
	PaymentEndpoint    *PaymentEndpointView `json:"paymentEndpoint,omitempty"`
	EndpointWarning    string               `json:"endpointWarning,omitempty"`
}

type PaymentEndpointView struct {
	QRURL        string `json:"qrUrl"`
	AccountLabel string `json:"accountLabel"`
}

func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// identity comes from the token, never the body
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	result, err := h.svc.Register(cctx, admission.Request{
		EventID:  eventID,
		UserID:   userID,
		TeamName: req.TeamName,
		Members:  req.TeamMembers,
		Category: req.RegistrationCategory,
	})

	if err != nil {
		switch {
		case errors.Is(err, admission.ErrRegistrationClosed):
			RespondForbidden(ctx, "registration_closed", "Registration is closed.")
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, registration.ErrAlreadyRegistered):
			RespondConflict(ctx, "already_registered", "You are already registered for this event.")
		case errors.Is(err, registration.ErrEventFull):
			RespondConflict(ctx, "event_full", "This event is already at full capacity.")
		case errors.Is(err, admission.ErrTeamSizeViolation):
			RespondUnprocessable(ctx, "team_size_violation", err.Error())
		case errors.Is(err, admission.ErrIncompleteMember):
			RespondUnprocessable(ctx, "incomplete_member", err.Error())
		case errors.Is(err, admission.ErrCategoryRequired):
			RespondUnprocessable(ctx, "category_required", err.Error())
		case errors.Is(err, admission.ErrUnknownCategory):
			RespondUnprocessable(ctx, "unknown_category", err.Error())
		default:
			RespondInternal(ctx, "Could not register for event")
			h.log.Error("register failed", "event_id", eventID, "err", err)
		}
		return
	}

	resp := RegisterResponse{
		RegistrationID:     result.Registration.ID,
		RegistrationNumber: result.Registration.RegistrationNumber,
		Amount:             result.Registration.Amount,
		PaymentStatus:      string(result.Registration.PaymentStatus),
		ConflictWarning:    result.ConflictWarning,
		EndpointWarning:    result.EndpointWarning,
	}

	if result.PaymentEndpoint != nil {
		resp.PaymentEndpoint = &PaymentEndpointView{
			QRURL:        result.PaymentEndpoint.QRURL,
			AccountLabel: result.PaymentEndpoint.AccountLabel,
		}
	}

	ctx.JSON(http.StatusCreated, resp)
}

func (h *RegistrationsHandler) GetStatus(ctx *gin.Context) {
	regID := ctx.Param("registrationId")

	if !isUUID(regID) {
		RespondBadRequest(ctx, "registration id must be a valid UUID", nil)
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)
	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	reg, err := h.svc.GetRegistration(cctx, regID)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			RespondNotFound(ctx, "Registration not found")
			return
		}
		RespondInternal(ctx, "Could not load registration")
		return
	}

	if role != "admin" && reg.UserID != userID {
		RespondForbidden(ctx, "forbidden", "You can only view your own registration")
		return
	}

	ctx.JSON(http.StatusOK, reg)
}

func (h *RegistrationsHandler) Cancel(ctx *gin.Context) {
	regID := ctx.Param("registrationId")

	if !isUUID(regID) {
		RespondBadRequest(ctx, "registration id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	// Load registration to check ownership (admin override)

	reg, err := h.svc.GetRegistration(cctx, regID)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			RespondNotFound(ctx, "Registration not found")
			return
		}
		RespondInternal(ctx, "Could not cancel registration")
		return
	}

	if role != "admin" && reg.UserID != userID {
		RespondForbidden(ctx, "forbidden", "You can only cancel your own registration")
		return
	}

	err = h.svc.Cancel(cctx, regID)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			RespondNotFound(ctx, "Registration not found")
		case errors.Is(err, registration.ErrCancelCompleted):
			RespondConflict(ctx, "payment_completed", "A completed registration cannot be cancelled.")
		default:
			RespondInternal(ctx, "Could not cancel registration")
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

type PaymentResultRequest struct {
	Status registration.PaymentStatus `json:"status" binding:"required,oneof=verification_pending completed failed"`
}

// PaymentResult is the callback surface for the payment gateway or an admin
// verification action. Idempotent: replaying the current status is a 200.
func (h *RegistrationsHandler) PaymentResult(ctx *gin.Context) {
	regID := ctx.Param("registrationId")

	if !isUUID(regID) {
		RespondBadRequest(ctx, "registration id must be a valid UUID", nil)
		return
	}

	var req PaymentResultRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	reg, err := h.svc.ApplyPaymentResult(cctx, regID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			RespondNotFound(ctx, "Registration not found")
		case errors.Is(err, registration.ErrInvalidTransition):
			RespondConflict(ctx, "invalid_transition", "That payment status change is not allowed.")
		default:
			RespondInternal(ctx, "Could not record payment result")
			h.log.Error("payment result failed", "registration_id", regID, "err", err)
		}
		return
	}

	ctx.JSON(http.StatusOK, reg)
}

type eventRegistrationsResponse struct {
	Registrations []registration.Registration `json:"registrations"`
	Total         int                         `json:"total"`
}

// ListByEvent is the admin roster for one event, cancelled rows included.
func (h *RegistrationsHandler) ListByEvent(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	regs, err := h.lister.ListByEvent(cctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not list registrations")
		h.log.Error("list registrations failed", "event_id", eventID, "err", err)
		return
	}

	ctx.JSON(http.StatusOK, eventRegistrationsResponse{
		Registrations: regs,
		Total:         len(regs),
	})
}

// ActiveEndpoint re-displays payment details without consuming QR usage.
func (h *RegistrationsHandler) ActiveEndpoint(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !isUUID(eventID) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	ep, err := h.endpoints.Active(cctx, eventID)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrNoEligibleEndpoint):
			RespondConflict(ctx, "no_payment_endpoint", "No payment endpoint is currently available.")
		default:
			RespondInternal(ctx, "Could not load payment endpoint")
		}
		return
	}

	ctx.JSON(http.StatusOK, PaymentEndpointView{
		QRURL:        ep.QRURL,
		AccountLabel: ep.AccountLabel,
	})
}
