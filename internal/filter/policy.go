package filter

import (
	"context"
	"fmt"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/policy"
)

// PolicyFilter evaluates the submission against the policy engine. An
// "ask" verdict is held in the approval queue until a human decides.
type PolicyFilter struct {
	engine    policy.Engine
	approvals *approval.Queue
}

// NewPolicyFilter creates a policy filter. approvals may be nil, in which
// case "ask" is treated as "deny".
func NewPolicyFilter(engine policy.Engine, approvals *approval.Queue) *PolicyFilter {
	return &PolicyFilter{engine: engine, approvals: approvals}
}

func (f *PolicyFilter) Name() string { return "policy" }

func (f *PolicyFilter) Init(context.Context) error {
	if f.engine == nil {
		return fmt.Errorf("policy filter: nil engine")
	}
	return nil
}

func (f *PolicyFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	tc := TxContextFrom(ctx)
	if tc == nil {
		tc = NewTxContext(api.MethodSendRawTransaction, payload)
	}

	result, err := f.engine.Evaluate(ctx, policy.InputFor(tc.Method, payload))
	if err != nil {
		return "", fmt.Errorf("evaluating policy: %w", err)
	}

	tc.Verdict = result.Verdict
	tc.MatchedRule = result.Rule
	tc.VerdictMessage = result.Message

	switch result.Verdict {
	case api.VerdictAllow, api.VerdictLog:
		return chain.DoFilter(ctx, payload)
	case api.VerdictAsk:
		if err := f.awaitApproval(ctx, tc); err != nil {
			return "", err
		}
		return chain.DoFilter(ctx, payload)
	default:
		return "", &DeniedError{Rule: result.Rule, Message: result.Message}
	}
}

func (f *PolicyFilter) awaitApproval(ctx context.Context, tc *TxContext) error {
	if f.approvals == nil {
		tc.Verdict = api.VerdictDeny
		return &DeniedError{Rule: tc.MatchedRule, Message: "approval required but no approval queue configured"}
	}

	status, err := f.approvals.Submit(ctx, approval.Input{
		Method:      tc.Method,
		PayloadHash: tc.PayloadHash,
		PayloadSize: tc.PayloadSize,
		Rule:        tc.MatchedRule,
		Message:     tc.VerdictMessage,
	})
	if err != nil {
		tc.Verdict = api.VerdictDeny
		return fmt.Errorf("awaiting approval: %w", err)
	}

	switch status {
	case approval.StatusApproved:
		tc.Verdict = api.VerdictAllow
		return nil
	case approval.StatusTimedOut:
		tc.Verdict = api.VerdictDeny
		tc.VerdictMessage = "approval request timed out"
		return &DeniedError{Rule: tc.MatchedRule, Message: tc.VerdictMessage, Err: approval.ErrTimedOut}
	default:
		tc.Verdict = api.VerdictDeny
		tc.VerdictMessage = "request denied by approver"
		return &DeniedError{Rule: tc.MatchedRule, Message: tc.VerdictMessage}
	}
}

func (f *PolicyFilter) Destroy() error { return nil }
