package api

import "time"

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Method  string    `json:"method,omitempty"`
	Verdict Verdict   `json:"verdict,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// AuditStats provides summary statistics for the dashboard.
type AuditStats struct {
	TotalRequests  int            `json:"total_requests"`
	AllowCount     int            `json:"allow_count"`
	DenyCount      int            `json:"deny_count"`
	AskCount       int            `json:"ask_count"`
	LogCount       int            `json:"log_count"`
	SubmittedCount int            `json:"submitted_count"`
	FailedCount    int            `json:"failed_count"`
	ByMethod       map[string]int `json:"by_method"`
	ByOutcome      map[string]int `json:"by_outcome"`
}
