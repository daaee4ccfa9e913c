package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/festlabs/festreg/internal/domain/event"
)

// ConflictDetector finds date/time overlaps between a candidate event and the
// events behind a user's other active registrations. Its output is advisory
// only and never blocks admission.
//
// Overlap rule: an event occupies [StartAt, EndAt) when an explicit end time
// exists. Without one it occupies its start through the end of that calendar
// day, unless DefaultDuration is set, in which case it occupies
// [StartAt, StartAt+DefaultDuration).
type ConflictDetector struct {
	DefaultDuration time.Duration
}

func (d ConflictDetector) window(e event.Event) (time.Time, time.Time) {
	start := e.StartAt

	if e.EndAt != nil && e.EndAt.After(start) {
		return start, *e.EndAt
	}

	if d.DefaultDuration > 0 {
		return start, start.Add(d.DefaultDuration)
	}

	// rest of the calendar day, in the event's own location
	endOfDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
	return start, endOfDay
}

// Conflicts returns the subset of others whose windows intersect the
// candidate's. Deterministic, side-effect free.
func (d ConflictDetector) Conflicts(candidate event.Event, others []event.Event) []event.Event {
	cStart, cEnd := d.window(candidate)

	var out []event.Event
	for _, o := range others {
		if o.ID == candidate.ID {
			continue
		}
		oStart, oEnd := d.window(o)
		if cStart.Before(oEnd) && oStart.Before(cEnd) {
			out = append(out, o)
		}
	}
	return out
}

// Warning renders the non-blocking advisory shown to the registrant, or ""
// when there is nothing to warn about.
func (d ConflictDetector) Warning(candidate event.Event, others []event.Event) string {
	conflicts := d.Conflicts(candidate, others)
	if len(conflicts) == 0 {
		return ""
	}

	names := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		names = append(names, c.Title)
	}

	return fmt.Sprintf("this event overlaps with your existing registration(s): %s", strings.Join(names, ", "))
}
