package appointments

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no appointment matches the id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidTransition is returned for moves out of a terminal state.
	ErrInvalidTransition = errors.New("appointments: invalid transition")
	// ErrConcurrentUpdate means the row changed between read and write.
	ErrConcurrentUpdate = errors.New("appointments: concurrent update")
)

// CancellationReasonMessaging is recorded when a customer cancels by replying to a message.
const CancellationReasonMessaging = "customer cancelled via messaging"

// Transition is the set of field changes a state move produces.
type Transition struct {
	Status             Status
	ConfirmationStatus ConfirmationStatus
	At                 time.Time
	Via                Channel
	Reason             string
	CustomerResponse   string
	LateCancellation   bool
}

// CancelRequest describes a cancellation attempt.
type CancelRequest struct {
	Reason   string
	Via      Channel
	Late     bool
	Response string
}

// Confirm moves a pending appointment to confirmed. Confirming twice is a no-op.
func Confirm(a Appointment, response string, at time.Time) (Transition, bool, error) {
	switch a.Status {
	case StatusCancelled, StatusCompleted:
		return Transition{}, false, fmt.Errorf("%w: cannot confirm %s appointment", ErrInvalidTransition, a.Status)
	}
	if a.ConfirmationStatus == ConfirmationConfirmed {
		return Transition{}, false, nil
	}
	return Transition{
		Status:             a.Status,
		ConfirmationStatus: ConfirmationConfirmed,
		At:                 at,
		Via:                ViaMessaging,
		CustomerResponse:   response,
	}, true, nil
}

// Cancel moves an appointment to cancelled. Cancelling a cancelled appointment
// reports no change and no error.
func Cancel(a Appointment, req CancelRequest, at time.Time) (Transition, bool, error) {
	switch a.Status {
	case StatusCancelled:
		return Transition{}, false, nil
	case StatusCompleted:
		return Transition{}, false, fmt.Errorf("%w: cannot cancel completed appointment", ErrInvalidTransition)
	}
	return Transition{
		Status:             StatusCancelled,
		ConfirmationStatus: ConfirmationCancelled,
		At:                 at,
		Via:                req.Via,
		Reason:             req.Reason,
		CustomerResponse:   req.Response,
		LateCancellation:   req.Late,
	}, true, nil
}

// Apply returns a copy of a with the transition applied.
func (t Transition) Apply(a Appointment) Appointment {
	at := t.At
	a.Status = t.Status
	a.ConfirmationStatus = t.ConfirmationStatus
	switch t.ConfirmationStatus {
	case ConfirmationConfirmed:
		a.ConfirmedAt = &at
		a.CustomerResponse = t.CustomerResponse
	case ConfirmationCancelled:
		a.CancelledAt = &at
		a.CancelledVia = t.Via
		a.CancellationReason = t.Reason
		if t.CustomerResponse != "" {
			a.CustomerResponse = t.CustomerResponse
		}
		if t.LateCancellation {
			a.LateCancellation = true
			a.PaymentRequired = true
		}
	}
	a.UpdatedAt = at
	return a
}

// IsLateCancellation reports whether the time left before start is strictly
// shorter than window. Exactly window is not late.
func IsLateCancellation(start, now time.Time, window time.Duration) bool {
	return start.Sub(now) < window
}
