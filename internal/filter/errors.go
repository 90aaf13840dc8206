package filter

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when a submission exceeds a rate limit.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPayloadRejected is returned when a payload fails validation.
	ErrPayloadRejected = errors.New("payload rejected")

	// ErrEmptyPayload is a payload rejection for zero-length payloads.
	ErrEmptyPayload = fmt.Errorf("%w: empty payload", ErrPayloadRejected)
)

// DeniedError is returned when a policy or an approver refuses a submission.
type DeniedError struct {
	Rule    string
	Message string
	// Err is the underlying cause, e.g. approval.ErrTimedOut.
	Err error
}

func (e *DeniedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "denied by policy"
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s (rule %q)", msg, e.Rule)
	}
	return msg
}

func (e *DeniedError) Unwrap() error { return e.Err }
