package registration

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	// PaymentNone is terminal: the event charged nothing.
	PaymentNone                PaymentStatus = "none"
	PaymentPending             PaymentStatus = "pending"
	PaymentVerificationPending PaymentStatus = "verification_pending"
	PaymentCompleted           PaymentStatus = "completed"
	PaymentFailed              PaymentStatus = "failed"
)

// TeamMember is one participant on a registration. Individual events carry
// exactly one member (the registrant).
type TeamMember struct {
	Name    string `json:"name" binding:"required,min=2,max=120"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"required,min=7,max=20"`
	College string `json:"college" binding:"omitempty,max=160"`
}

type Registration struct {
	ID                 string        `json:"id"`
	RegistrationNumber string        `json:"registrationNumber"`
	EventID            string        `json:"eventId"`
	UserID             string        `json:"userId"`
	TeamName           string        `json:"teamName,omitempty"`
	Members            []TeamMember  `json:"teamMembers"`
	Category           string        `json:"registrationCategory,omitempty"`
	Amount             int64         `json:"amount"`
	Status             Status        `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Counted reports whether the registration occupies a capacity slot:
// active and not failed.
func (r Registration) Counted() bool {
	return r.Status == StatusActive && r.PaymentStatus != PaymentFailed
}

var (
	ErrNotFound = errors.New("registration not found")
	// a user may hold at most one active, non-failed registration per event
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrEventFull         = errors.New("event is at full capacity")
	ErrCancelCompleted   = errors.New("completed registration cannot be cancelled")
)

// CreateRequest is what the admission controller hands the store after
// validation and fee resolution. EventID/UserID come from the route and the
// identity token, never the body.
type CreateRequest struct {
	EventID  string
	UserID   string
	TeamName string
	Members  []TeamMember
	Category string
	Amount   int64
}

// NewFromCreateRequest builds the Registration row for a validated request.
// Payment status starts at "none" for free events and "pending" otherwise.
func NewFromCreateRequest(req CreateRequest) Registration {
	now := time.Now().UTC()

	ps := PaymentPending
	if req.Amount == 0 {
		ps = PaymentNone
	}

	return Registration{
		ID:                 uuid.NewString(),
		RegistrationNumber: NewRegistrationNumber(),
		EventID:            req.EventID,
		UserID:             req.UserID,
		TeamName:           req.TeamName,
		Members:            req.Members,
		Category:           req.Category,
		Amount:             req.Amount,
		Status:             StatusActive,
		PaymentStatus:      ps,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewRegistrationNumber returns a short human-quotable reference like
// REG-3F2A91BC. Uniqueness is enforced by the store; collisions are retried.
func NewRegistrationNumber() string {
	return "REG-" + strings.ToUpper(uuid.NewString()[:8])
}
