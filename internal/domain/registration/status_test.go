package registration

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"pending_to_verification", PaymentPending, PaymentVerificationPending, true},
		{"pending_to_failed", PaymentPending, PaymentFailed, true},
		{"pending_to_completed_skips_verification", PaymentPending, PaymentCompleted, false},
		{"verification_to_completed", PaymentVerificationPending, PaymentCompleted, true},
		{"verification_to_failed", PaymentVerificationPending, PaymentFailed, true},
		{"completed_is_terminal", PaymentCompleted, PaymentFailed, false},
		{"failed_is_terminal", PaymentFailed, PaymentPending, false},
		{"none_is_terminal", PaymentNone, PaymentPending, false},

		// replays are no-ops, not errors
		{"completed_to_completed_idempotent", PaymentCompleted, PaymentCompleted, true},
		{"pending_to_pending_idempotent", PaymentPending, PaymentPending, true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestApplyPayment(t *testing.T) {
	reg := Registration{PaymentStatus: PaymentPending}

	updated, err := reg.ApplyPayment(PaymentVerificationPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PaymentStatus != PaymentVerificationPending {
		t.Fatalf("got %s, want %s", updated.PaymentStatus, PaymentVerificationPending)
	}
	// receiver untouched
	if reg.PaymentStatus != PaymentPending {
		t.Fatalf("original mutated to %s", reg.PaymentStatus)
	}

	if _, err := reg.ApplyPayment(PaymentCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestNewFromCreateRequest_PaymentStatus(t *testing.T) {
	free := NewFromCreateRequest(CreateRequest{Amount: 0})
	if free.PaymentStatus != PaymentNone {
		t.Fatalf("free event got %s, want none", free.PaymentStatus)
	}

	paid := NewFromCreateRequest(CreateRequest{Amount: 500})
	if paid.PaymentStatus != PaymentPending {
		t.Fatalf("paid event got %s, want pending", paid.PaymentStatus)
	}
	if paid.Status != StatusActive {
		t.Fatalf("got status %s, want active", paid.Status)
	}
	if paid.ID == "" || paid.RegistrationNumber == "" {
		t.Fatalf("expected generated ids, got %q / %q", paid.ID, paid.RegistrationNumber)
	}
}

func TestNewRegistrationNumber_Format(t *testing.T) {
	n := NewRegistrationNumber()

	if !strings.HasPrefix(n, "REG-") {
		t.Fatalf("got %q, want REG- prefix", n)
	}
	if len(n) != len("REG-")+8 {
		t.Fatalf("got %q, want 8-char suffix", n)
	}
	if n != strings.ToUpper(n) {
		t.Fatalf("got %q, want uppercase", n)
	}
}

func TestCounted(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want bool
	}{
		{"active_pending", Registration{Status: StatusActive, PaymentStatus: PaymentPending}, true},
		{"active_none", Registration{Status: StatusActive, PaymentStatus: PaymentNone}, true},
		{"active_failed", Registration{Status: StatusActive, PaymentStatus: PaymentFailed}, false},
		{"cancelled", Registration{Status: StatusCancelled, PaymentStatus: PaymentCompleted}, false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reg.Counted(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
