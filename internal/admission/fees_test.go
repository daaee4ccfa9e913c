package admission

import (
	"errors"
	"testing"

	"github.com/festlabs/festreg/internal/domain/event"
)

func TestResolveFee(t *testing.T) {
	flat := event.Event{RegistrationFee: 300}
	free := event.Event{RegistrationFee: 0}
	tiered := event.Event{
		// flat fee must be ignored once categories exist
		RegistrationFee: 999,
		Categories: []event.RegistrationCategory{
			{Name: "solo", Fee: 150},
			{Name: "band", Fee: 400},
			{Name: "open-mic", Fee: 0},
		},
	}

	tests := []struct {
		name     string
		event    event.Event
		category string
		want     int64
		wantErr  error
	}{
		{"flat_fee", flat, "", 300, nil},
		{"flat_fee_category_ignored", flat, "anything", 300, nil},
		{"free_event", free, "", 0, nil},

		{"tiered_fee", tiered, "band", 400, nil},
		{"tiered_zero_fee_category", tiered, "open-mic", 0, nil},
		{"tiered_missing_category", tiered, "", 0, ErrCategoryRequired},
		{"tiered_unknown_category", tiered, "duet", 0, ErrUnknownCategory},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFee(tt.event, tt.category)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got fee %d, want %d", got, tt.want)
			}
		})
	}
}
