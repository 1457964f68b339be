package channel

import (
	"errors"
	"fmt"
)

// PermanentError is a rejection that will not succeed on retry: invalid
// address, hard bounce, recipient unsubscribed. The dispatcher fails the
// entry terminally and deactivates the contact for the channel.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent channel failure (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent channel failure (%s)", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// TransientError is a failure worth retrying: timeout, throttling, provider
// 5xx.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient channel failure (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient channel failure (%s)", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewPermanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

func NewTransient(reason string, err error) error {
	return &TransientError{Reason: reason, Err: err}
}

// IsPermanent reports whether err is classified as a permanent rejection.
// Unclassified errors are treated as transient so that an ambiguous provider
// failure never burns a recipient.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
