package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/gin-gonic/gin"
)

type SettingsStore interface {
	Load(ctx context.Context) (settings.Scheduler, error)
	Configure(ctx context.Context, disableAt *time.Time) error
	SetRegistrationOpen(ctx context.Context, open bool) error
}

type EventReconciler interface {
	Reconcile(ctx context.Context, eventID string) (int, error)
	ReconcileAll(ctx context.Context) error
}

type AdminSettingsHandler struct {
	store      SettingsStore
	reconciler EventReconciler
	log        *slog.Logger
}

func NewAdminSettingsHandler(store SettingsStore, reconciler EventReconciler, log *slog.Logger) *AdminSettingsHandler {
	return &AdminSettingsHandler{store: store, reconciler: reconciler, log: log}
}

func (h *AdminSettingsHandler) GetScheduler(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.store.Load(cctx)
	if err != nil {
		if errors.Is(err, settings.ErrNotConfigured) {
			RespondNotFound(ctx, "Scheduler settings not configured")
			return
		}
		RespondInternal(ctx, "Could not load scheduler settings")
		return
	}

	ctx.JSON(http.StatusOK, s)
}

type ConfigureSchedulerRequest struct {
	ScheduledDisableTime *time.Time `json:"scheduledDisableTime" binding:"omitempty"`
}

// ConfigureScheduler arms (or disarms, with a null time) the auto-disable
// switch. Re-arming clears has_executed so a new deadline fires once more.
func (h *AdminSettingsHandler) ConfigureScheduler(ctx *gin.Context) {
	var req ConfigureSchedulerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.ScheduledDisableTime != nil && req.ScheduledDisableTime.Before(time.Now()) {
		RespondUnprocessable(ctx, "time_in_past", "scheduledDisableTime must be in the future")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.store.Configure(cctx, req.ScheduledDisableTime); err != nil {
		RespondInternal(ctx, "Could not update scheduler settings")
		h.log.Error("configure scheduler failed", "err", err)
		return
	}

	s, err := h.store.Load(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load scheduler settings")
		return
	}

	ctx.JSON(http.StatusOK, s)
}

type RegistrationOpenRequest struct {
	Open *bool `json:"open" binding:"required"`
}

func (h *AdminSettingsHandler) SetRegistrationOpen(ctx *gin.Context) {
	var req RegistrationOpenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.store.SetRegistrationOpen(cctx, *req.Open); err != nil {
		RespondInternal(ctx, "Could not update registration flag")
		h.log.Error("set registration open failed", "open", *req.Open, "err", err)
		return
	}

	h.log.Info("registration flag changed", "open", *req.Open)

	ctx.JSON(http.StatusOK, gin.H{"registrationOpen": *req.Open})
}

// ReconcileEvent recounts one event's participants from its registrations.
func (h *AdminSettingsHandler) ReconcileEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	count, err := h.reconciler.Reconcile(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not reconcile event")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"eventId": id, "currentParticipants": count})
}

func (h *AdminSettingsHandler) ReconcileAll(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(30 * time.Second)
	defer cancel()

	if err := h.reconciler.ReconcileAll(cctx); err != nil {
		RespondInternal(ctx, "Reconcile sweep failed")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}
