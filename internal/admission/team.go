package admission

import (
	"errors"
	"fmt"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
)

var (
	ErrTeamSizeViolation = errors.New("team size outside allowed bounds")
	ErrIncompleteMember  = errors.New("team member missing name, email or phone")
)

// ValidateTeam checks the submitted member list against the event's team-size
// bounds. Individual events (Max == 1) require exactly one member, who is
// treated as the registrant. No side effects.
func ValidateTeam(e event.Event, members []registration.TeamMember) error {
	min, max := e.TeamSize.Min, e.TeamSize.Max

	if !e.IsTeamEvent() {
		min, max = 1, 1
	}

	if len(members) < min || len(members) > max {
		return fmt.Errorf("%w: got %d, allowed %d-%d", ErrTeamSizeViolation, len(members), min, max)
	}

	for i, m := range members {
		if m.Name == "" || m.Email == "" || m.Phone == "" {
			return fmt.Errorf("%w: member %d", ErrIncompleteMember, i+1)
		}
	}

	return nil
}
