package notification

import "fmt"

// Status is the closed set of ledger entry states.
type Status string

const (
	// StatusPending: created by the sweep, not yet inside the send window.
	StatusPending Status = "PENDING"
	// StatusDue: eligible for dispatch.
	StatusDue Status = "DUE"
	// StatusSending: claimed by a dispatch worker. The claim is what makes
	// delivery at-most-once under concurrent workers.
	StatusSending Status = "SENDING"
	// StatusSent: delivered. Terminal.
	StatusSent Status = "SENT"
	// StatusFailed: permanently rejected or out of retry budget. Terminal.
	StatusFailed Status = "FAILED"
	// StatusCancelled: owning memorial deleted or contact withdrawn before
	// send. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when a status change is not permitted by
// the state machine.
type ErrInvalidTransition struct {
	From, To Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid ledger transition %s -> %s", e.From, e.To)
}

var transitions = map[Status][]Status{
	StatusPending: {StatusDue, StatusCancelled},
	StatusDue:     {StatusSending, StatusCancelled},
	// A transient failure puts a claimed entry back in DUE for a later retry;
	// crash recovery uses the same edge.
	StatusSending: {StatusSent, StatusDue, StatusFailed, StatusCancelled},
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &ErrInvalidTransition{From: from, To: to}
	}
	return to, nil
}
