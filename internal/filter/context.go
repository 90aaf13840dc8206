package filter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/tkingovr/roochguard/api"
)

// TxContext carries per-submission metadata through the filter chain. One
// is created for every top-level call and travels on the context.Context,
// so filters can record verdicts without sharing state across calls.
type TxContext struct {
	// Method is the RPC method being filtered.
	Method string

	// PayloadSize is the size in bytes of the payload as submitted.
	PayloadSize int

	// PayloadHash is the hex SHA-256 of the payload as submitted.
	PayloadHash string

	// Verdict is set by filters that make a decision (policy, rate limit, validation).
	Verdict api.Verdict

	// MatchedRule is the name of the rule that produced the verdict.
	MatchedRule string

	// VerdictMessage is the human-readable message from the matched rule.
	VerdictMessage string

	// Attempts counts calls that reached the real client.
	Attempts int

	// Recovered is set when a filter replaced a downstream failure.
	Recovered bool

	// StartTime records when the submission entered the chain.
	StartTime time.Time
}

type txContextKey struct{}

// NewTxContext creates a new TxContext for one submission.
func NewTxContext(method string, payload []byte) *TxContext {
	sum := sha256.Sum256(payload)
	return &TxContext{
		Method:      method,
		PayloadSize: len(payload),
		PayloadHash: hex.EncodeToString(sum[:]),
		StartTime:   time.Now(),
	}
}

// WithTxContext attaches tc to ctx.
func WithTxContext(ctx context.Context, tc *TxContext) context.Context {
	return context.WithValue(ctx, txContextKey{}, tc)
}

// TxContextFrom returns the TxContext on ctx, or nil.
func TxContextFrom(ctx context.Context) *TxContext {
	tc, _ := ctx.Value(txContextKey{}).(*TxContext)
	return tc
}

// reject records a short-circuit decision.
func (tc *TxContext) reject(rule, message string) {
	if tc == nil {
		return
	}
	tc.Verdict = api.VerdictDeny
	tc.MatchedRule = rule
	tc.VerdictMessage = message
}

// Outcome classifies how the submission ended given its final error.
func (tc *TxContext) Outcome(err error) api.Outcome {
	switch {
	case err == nil && tc.Recovered:
		return api.OutcomeRecovered
	case err == nil:
		return api.OutcomeSubmitted
	case tc.Attempts == 0 || IsRejection(err):
		return api.OutcomeRejected
	default:
		return api.OutcomeFailed
	}
}

// ToAuditRecord converts the context and the call's result into an audit record.
func (tc *TxContext) ToAuditRecord(txHash string, err error) *api.AuditRecord {
	verdict := tc.Verdict
	if verdict == "" {
		verdict = api.VerdictAllow
	}
	rec := &api.AuditRecord{
		Timestamp:   tc.StartTime,
		Method:      tc.Method,
		PayloadSize: tc.PayloadSize,
		PayloadHash: tc.PayloadHash,
		TxHash:      txHash,
		Verdict:     verdict,
		Rule:        tc.MatchedRule,
		Message:     tc.VerdictMessage,
		Outcome:     tc.Outcome(err),
		Attempts:    tc.Attempts,
		Duration:    time.Since(tc.StartTime),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// IsRejection reports whether err came from a filter refusing the
// submission rather than from the node.
func IsRejection(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrPayloadRejected)
}
