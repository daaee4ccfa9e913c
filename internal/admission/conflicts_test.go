package admission

import (
	"strings"
	"testing"
	"time"

	"github.com/festlabs/festreg/internal/domain/event"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC)
}

func timed(id, title string, start, end time.Time) event.Event {
	return event.Event{ID: id, Title: title, StartAt: start, EndAt: &end}
}

func openEnded(id, title string, start time.Time) event.Event {
	return event.Event{ID: id, Title: title, StartAt: start}
}

func TestConflicts(t *testing.T) {
	d := ConflictDetector{}

	tests := []struct {
		name      string
		candidate event.Event
		others    []event.Event
		wantIDs   []string
	}{
		{
			name:      "overlapping_windows",
			candidate: timed("a", "A", at(10), at(12)),
			others:    []event.Event{timed("b", "B", at(11), at(13))},
			wantIDs:   []string{"b"},
		},
		{
			name:      "disjoint_windows",
			candidate: timed("a", "A", at(10), at(12)),
			others:    []event.Event{timed("b", "B", at(13), at(14))},
			wantIDs:   nil,
		},
		{
			// [10,12) and [12,14) share only the boundary instant
			name:      "back_to_back_no_conflict",
			candidate: timed("a", "A", at(10), at(12)),
			others:    []event.Event{timed("b", "B", at(12), at(14))},
			wantIDs:   nil,
		},
		{
			// no end time: occupies the rest of its calendar day
			name:      "open_ended_spans_day",
			candidate: openEnded("a", "A", at(9)),
			others:    []event.Event{timed("b", "B", at(20), at(22))},
			wantIDs:   []string{"b"},
		},
		{
			name:      "open_ended_next_day_clear",
			candidate: openEnded("a", "A", at(9)),
			others: []event.Event{
				timed("b", "B", at(20).AddDate(0, 0, 1), at(22).AddDate(0, 0, 1)),
			},
			wantIDs: nil,
		},
		{
			name:      "candidate_itself_skipped",
			candidate: timed("a", "A", at(10), at(12)),
			others:    []event.Event{timed("a", "A", at(10), at(12))},
			wantIDs:   nil,
		},
		{
			name:      "multiple_conflicts",
			candidate: timed("a", "A", at(10), at(15)),
			others: []event.Event{
				timed("b", "B", at(9), at(11)),
				timed("c", "C", at(14), at(16)),
				timed("d", "D", at(16), at(17)),
			},
			wantIDs: []string{"b", "c"},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := d.Conflicts(tt.candidate, tt.others)

			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d conflicts, want %d", len(got), len(tt.wantIDs))
			}
			for i, c := range got {
				if c.ID != tt.wantIDs[i] {
					t.Fatalf("conflict %d: got %s, want %s", i, c.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestConflicts_DefaultDuration(t *testing.T) {
	d := ConflictDetector{DefaultDuration: 2 * time.Hour}

	candidate := openEnded("a", "A", at(9))

	// with a 2h default window [9,11), an evening event no longer conflicts
	evening := timed("b", "B", at(20), at(22))
	if got := d.Conflicts(candidate, []event.Event{evening}); len(got) != 0 {
		t.Fatalf("expected no conflict with bounded default duration, got %d", len(got))
	}

	morning := timed("c", "C", at(10), at(12))
	if got := d.Conflicts(candidate, []event.Event{morning}); len(got) != 1 {
		t.Fatalf("expected conflict inside default window, got %d", len(got))
	}
}

func TestWarning(t *testing.T) {
	d := ConflictDetector{}

	candidate := timed("a", "Stage A Finals", at(10), at(12))
	others := []event.Event{
		timed("b", "Drum Circle", at(11), at(13)),
		timed("c", "Poetry Slam", at(11), at(12)),
	}

	msg := d.Warning(candidate, others)
	if !strings.Contains(msg, "Drum Circle") || !strings.Contains(msg, "Poetry Slam") {
		t.Fatalf("warning missing titles: %q", msg)
	}

	if msg := d.Warning(candidate, nil); msg != "" {
		t.Fatalf("expected empty warning, got %q", msg)
	}
}
