package registration

import "errors"

var ErrInvalidTransition = errors.New("invalid payment status transition")

// allowed payment transitions, triggered externally (gateway callback or admin
// verification). "none" and "completed" are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:             {PaymentVerificationPending, PaymentFailed},
	PaymentVerificationPending: {PaymentCompleted, PaymentFailed},
}

// CanTransition reports whether from -> to is a legal payment transition.
// Re-applying the current status is a no-op, not an error, so webhook retries
// stay idempotent.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyPayment returns the registration with the transition applied, or
// ErrInvalidTransition. Callers persist the result with a conditional update
// so concurrent transitions cannot interleave.
func (r Registration) ApplyPayment(to PaymentStatus) (Registration, error) {
	if !CanTransition(r.PaymentStatus, to) {
		return r, ErrInvalidTransition
	}
	r.PaymentStatus = to
	return r, nil
}

// ValidPaymentStatus guards statuses arriving over the wire.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentNone, PaymentPending, PaymentVerificationPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}
