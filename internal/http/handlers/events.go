package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/festlabs/festreg/internal/cache"
	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/gin-gonic/gin"
)

type EventsStore interface {
	Create(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	store EventsStore
	cache *cache.Cache
	log   *slog.Logger
}

func NewEventsHandler(store EventsStore, c *cache.Cache, log *slog.Logger) *EventsHandler {
	return &EventsHandler{store: store, cache: c, log: log}
}

// PublicEvent strips the payment plumbing from the listing payload. QR
// endpoints are only handed out through the registration flow.
type PublicEvent struct {
	ID                  string                       `json:"id"`
	Title               string                       `json:"title"`
	Description         string                       `json:"description,omitempty"`
	Venue               string                       `json:"venue,omitempty"`
	StartAt             time.Time                    `json:"startAt"`
	EndAt               *time.Time                   `json:"endAt,omitempty"`
	RegistrationFee     int64                        `json:"registrationFee"`
	Categories          []event.RegistrationCategory `json:"registrationCategories,omitempty"`
	TeamSize            event.TeamSize               `json:"teamSize"`
	MaxParticipants     int                          `json:"maxParticipants"`
	CurrentParticipants int                          `json:"currentParticipants"`
	SlotsLeft           int                          `json:"slotsLeft"`
}

func toPublicEvent(e event.Event) PublicEvent {
	left := e.MaxParticipants - e.CurrentParticipants
	if left < 0 {
		left = 0
	}
	return PublicEvent{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		Venue:               e.Venue,
		StartAt:             e.StartAt,
		EndAt:               e.EndAt,
		RegistrationFee:     e.RegistrationFee,
		Categories:          e.Categories,
		TeamSize:            e.TeamSize,
		MaxParticipants:     e.MaxParticipants,
		CurrentParticipants: e.CurrentParticipants,
		SlotsLeft:           left,
	}
}

type listEventsResponse struct {
	Events []PublicEvent `json:"events"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *EventsHandler) List(ctx *gin.Context) {
	filter, key, ok := parseListFilter(ctx)
	if !ok {
		return
	}

	if cached, hit := h.cache.Get(key); hit {
		ctx.JSON(http.StatusOK, cached)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	events, total, err := h.store.List(cctx, filter)
	if err != nil {
		RespondInternal(ctx, "Could not list events")
		h.log.Error("list events failed", "err", err)
		return
	}

	out := make([]PublicEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toPublicEvent(e))
	}

	resp := listEventsResponse{
		Events: out,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	h.cache.Set(key, resp)

	ctx.JSON(http.StatusOK, resp)
}

func parseListFilter(ctx *gin.Context) (event.ListEventsFilter, string, bool) {
	var filter event.ListEventsFilter

	filter.Limit = 20
	filter.Offset = 0

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be an integer between 1 and 100", nil)
			return filter, "", false
		}
		filter.Limit = n
	}
	if raw := ctx.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
			return filter, "", false
		}
		filter.Offset = n
	}
	if venue := ctx.Query("venue"); venue != "" {
		filter.Venue = &venue
	}
	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "from must be an RFC3339 timestamp", nil)
			return filter, "", false
		}
		filter.From = &t
	}
	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "to must be an RFC3339 timestamp", nil)
			return filter, "", false
		}
		filter.To = &t
	}

	key := fmt.Sprintf("events:list:%s:%s:%s:%d:%d",
		ctx.Query("venue"), ctx.Query("from"), ctx.Query("to"), filter.Limit, filter.Offset)

	return filter, key, true
}

func (h *EventsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	key := "events:get:" + id

	if cached, hit := h.cache.Get(key); hit {
		ctx.JSON(http.StatusOK, cached)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not load event")
		return
	}

	resp := toPublicEvent(e)
	h.cache.Set(key, resp)

	ctx.JSON(http.StatusOK, resp)
}

// Admin surface below. Full event payloads, endpoints included.

func (h *EventsHandler) Create(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if msg, ok := validateEventRequest(req.TeamMin, req.TeamMax, req.StartAt, req.EndAt); !ok {
		RespondUnprocessable(ctx, "invalid_event", msg)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.store.Create(cctx, req)
	if err != nil {
		RespondInternal(ctx, "Could not create event")
		h.log.Error("create event failed", "err", err)
		return
	}

	h.cache.Clear()

	ctx.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if msg, ok := validateEventRequest(req.TeamMin, req.TeamMax, req.StartAt, req.EndAt); !ok {
		RespondUnprocessable(ctx, "invalid_event", msg)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.store.Update(cctx, id, req)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		h.log.Error("update event failed", "event_id", id, "err", err)
		return
	}

	h.cache.Clear()

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.store.Delete(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	h.cache.Clear()

	ctx.Status(http.StatusNoContent)
}

// AdminGet returns the raw event including QR endpoint usage counters.
func (h *EventsHandler) AdminGet(ctx *gin.Context) {
	id := ctx.Param("id")

	if !isUUID(id) {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not load event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

// cross-field checks the binding tags cannot express
func validateEventRequest(teamMin, teamMax int, startAt time.Time, endAt *time.Time) (string, bool) {
	if teamMin > teamMax {
		return "teamMin must not exceed teamMax", false
	}
	if endAt != nil && !endAt.After(startAt) {
		return "endAt must be after startAt", false
	}
	return "", true
}
