package event

import (
	"time"

	"github.com/google/uuid"
)

// A factory to build an Event from the incoming DTO.

func NewFromCreateRequest(req CreateEventRequest) Event {
	now := time.Now().UTC()

	e := Event{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		Venue:           req.Venue,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		RegistrationFee: req.RegistrationFee,
		TeamSize:        TeamSize{Min: req.TeamMin, Max: req.TeamMax},
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, c := range req.Categories {
		e.Categories = append(e.Categories, RegistrationCategory{Name: c.Name, Fee: c.Fee})
	}

	for i, ep := range req.QREndpoints {
		e.QREndpoints = append(e.QREndpoints, QRCodeEndpoint{
			ID:           uuid.NewString(),
			Position:     i,
			AccountLabel: ep.AccountLabel,
			QRURL:        ep.QRURL,
			MaxUsage:     ep.MaxUsage,
			IsActive:     true,
		})
	}

	return e
}
