package event

import (
	"errors"
	"time"
)

// TeamSize holds the inclusive member-count bounds for an event.
// Max == 1 denotes an individual event.
type TeamSize struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RegistrationCategory is a named fee tier an event may offer instead of a
// single flat fee. Fees are integer currency units.
type RegistrationCategory struct {
	Name string `json:"name"`
	Fee  int64  `json:"fee"`
}

// QRCodeEndpoint is one of the rotating payment-collection identities attached
// to an event. UsageCount never exceeds MaxUsage; once it reaches MaxUsage the
// endpoint is retired (IsActive=false) permanently.
type QRCodeEndpoint struct {
	ID           string `json:"id"`
	Position     int    `json:"position"`
	AccountLabel string `json:"accountLabel"`
	QRURL        string `json:"qrUrl"`
	UsageCount   int    `json:"usageCount"`
	MaxUsage     int    `json:"maxUsage"`
	IsActive     bool   `json:"isActive"`
}

type Event struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description,omitempty"`
	Venue           string                 `json:"venue,omitempty"`
	StartAt         time.Time              `json:"startAt"`
	EndAt           *time.Time             `json:"endAt,omitempty"`
	RegistrationFee int64                  `json:"registrationFee"`
	Categories      []RegistrationCategory `json:"registrationCategories,omitempty"`
	TeamSize        TeamSize               `json:"teamSize"`
	MaxParticipants int                    `json:"maxParticipants"`
	// CurrentParticipants is a cached derived count; it may transiently drift
	// and is brought back in line by the reconciler.
	CurrentParticipants int              `json:"currentParticipants"`
	QREndpoints         []QRCodeEndpoint `json:"qrEndpoints,omitempty"`
	CurrentQRIndex      int              `json:"currentQrIndex"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// IsTeamEvent reports whether the event admits teams rather than individuals.
func (e Event) IsTeamEvent() bool {
	return e.TeamSize.Max > 1
}

// CategoryFee looks up a fee tier by name.
func (e Event) CategoryFee(name string) (int64, bool) {
	for _, c := range e.Categories {
		if c.Name == name {
			return c.Fee, true
		}
	}
	return 0, false
}

// NextEligibleEndpoint scans forward from startIdx (wrapping) for the first
// endpoint that is active and still under its usage cap. Returns the index
// into endpoints, or false when every endpoint is exhausted or disabled.
// Pure; both the postgres and memory stores drive their claim logic with it.
func NextEligibleEndpoint(endpoints []QRCodeEndpoint, startIdx int) (int, bool) {
	n := len(endpoints)
	if n == 0 {
		return 0, false
	}
	if startIdx < 0 || startIdx >= n {
		startIdx = 0
	}
	for i := 0; i < n; i++ {
		idx := (startIdx + i) % n
		ep := endpoints[idx]
		if ep.IsActive && ep.UsageCount < ep.MaxUsage {
			return idx, true
		}
	}
	return 0, false
}

var (
	ErrNotFound = errors.New("event not found")
	// every endpoint retired or at its cap; the registration needs an operator
	ErrNoEligibleEndpoint = errors.New("no eligible payment endpoint")
)

// ListEventsFilter narrows the public listing; nil pointers mean "no filter".
type ListEventsFilter struct {
	Venue  *string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,min=2,max=80"`
	Fee  int64  `json:"fee" binding:"min=0"`
}

type CreateEndpointRequest struct {
	AccountLabel string `json:"accountLabel" binding:"required,min=2,max=80"`
	QRURL        string `json:"qrUrl" binding:"required,url"`
	MaxUsage     int    `json:"maxUsage" binding:"required,min=1"`
}

type CreateEventRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=120"`
	Description     string                  `json:"description" binding:"omitempty,max=1000"`
	Venue           string                  `json:"venue" binding:"omitempty,min=2,max=120"`
	StartAt         time.Time               `json:"startAt" binding:"required"`
	EndAt           *time.Time              `json:"endAt" binding:"omitempty"`
	RegistrationFee int64                   `json:"registrationFee" binding:"min=0"`
	Categories      []CreateCategoryRequest `json:"registrationCategories" binding:"omitempty,dive"`
	TeamMin         int                     `json:"teamMin" binding:"required,min=1"`
	TeamMax         int                     `json:"teamMax" binding:"required,min=1"`
	MaxParticipants int                     `json:"maxParticipants" binding:"required,min=1,max=50000"`
	QREndpoints     []CreateEndpointRequest `json:"qrEndpoints" binding:"omitempty,dive"`
}

// a full update payload; QR endpoints are managed separately so usage counters
// cannot be clobbered by an event edit.
type UpdateEventRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=120"`
	Description     string                  `json:"description" binding:"omitempty,max=1000"`
	Venue           string                  `json:"venue" binding:"omitempty,min=2,max=120"`
	StartAt         time.Time               `json:"startAt" binding:"required"`
	EndAt           *time.Time              `json:"endAt" binding:"omitempty"`
	RegistrationFee int64                   `json:"registrationFee" binding:"min=0"`
	Categories      []CreateCategoryRequest `json:"registrationCategories" binding:"omitempty,dive"`
	TeamMin         int                     `json:"teamMin" binding:"required,min=1"`
	TeamMax         int                     `json:"teamMax" binding:"required,min=1"`
	MaxParticipants int                     `json:"maxParticipants" binding:"required,min=1,max=50000"`
}
