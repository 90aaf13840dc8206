package api

import (
	"time"
)

// Verdict represents the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictAsk   Verdict = "ask"
	VerdictLog   Verdict = "log"
)

// Outcome describes how a filtered submission ended.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted" // reached the node and returned a hash
	OutcomeRecovered Outcome = "recovered" // a filter substituted a result
	OutcomeRejected  Outcome = "rejected"  // short-circuited by a filter
	OutcomeFailed    Outcome = "failed"
)

// AuditRecord represents a single audited transaction submission.
type AuditRecord struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Method      string        `json:"method"`
	PayloadSize int           `json:"payload_size"`
	PayloadHash string        `json:"payload_hash,omitempty"`
	TxHash      string        `json:"tx_hash,omitempty"`
	Verdict     Verdict       `json:"verdict"`
	Rule        string        `json:"rule,omitempty"`
	Message     string        `json:"message,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Error       string        `json:"error,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command and the dashboard API.
type CheckRequest struct {
	Method  string `json:"method"`
	Payload string `json:"payload,omitempty"` // hex, optional 0x prefix
}

// CheckResponse is the result of a policy check.
type CheckResponse struct {
	Verdict Verdict `json:"verdict"`
	Rule    string  `json:"rule,omitempty"`
	Message string  `json:"message,omitempty"`
}
