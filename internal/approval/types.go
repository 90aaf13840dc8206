package approval

import (
	"errors"
	"time"
)

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusTimedOut Status = "timed_out"
	StatusCanceled Status = "canceled"
)

// ErrTimedOut is reported when nobody decided a request before the queue timeout.
var ErrTimedOut = errors.New("approval request timed out")

// Input describes a transaction that needs a human decision.
type Input struct {
	Method      string
	PayloadHash string
	PayloadSize int
	Rule        string
	Message     string
}

// Request represents a pending human approval request.
type Request struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Method      string     `json:"method"`
	PayloadHash string     `json:"payload_hash"`
	PayloadSize int        `json:"payload_size"`
	Message     string     `json:"message"`
	Rule        string     `json:"rule"`
	Status      Status     `json:"status"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`

	// done is closed when the request is resolved
	done chan struct{}
}

// Wait returns a channel that is closed once the request is resolved.
func (r *Request) Wait() <-chan struct{} {
	return r.done
}
