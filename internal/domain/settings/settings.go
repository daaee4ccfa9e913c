package settings

import (
	"errors"
	"time"
)

// Scheduler is the single durable settings row consulted by every admission
// request and mutated only by the auto-disable scheduler or an administrator.
type Scheduler struct {
	RegistrationOpen     bool       `json:"registrationOpen"`
	ScheduledDisableTime *time.Time `json:"scheduledDisableTime,omitempty"`
	HasExecuted          bool       `json:"hasExecuted"`
	ExecutedAt           *time.Time `json:"executedAt,omitempty"`
}

var ErrNotConfigured = errors.New("scheduler settings not configured")
