package filter

import (
	"context"
	"errors"
)

// Fallback produces a result in place of a failed downstream call.
type Fallback func(ctx context.Context, payload []byte, err error) (string, error)

// RecoveryFilter replaces downstream failures with a fallback result.
type RecoveryFilter struct {
	fallback Fallback
	when     func(error) bool
}

// RecoveryOption configures a RecoveryFilter.
type RecoveryOption func(*RecoveryFilter)

// RecoverWhen limits recovery to errors for which pred returns true.
func RecoverWhen(pred func(error) bool) RecoveryOption {
	return func(f *RecoveryFilter) { f.when = pred }
}

// NewRecoveryFilter creates a filter that recovers every downstream error
// through fallback unless narrowed with RecoverWhen.
func NewRecoveryFilter(fallback Fallback, opts ...RecoveryOption) *RecoveryFilter {
	f := &RecoveryFilter{fallback: fallback}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StaticFallback always recovers with result.
func StaticFallback(result string) Fallback {
	return func(context.Context, []byte, error) (string, error) {
		return result, nil
	}
}

func (f *RecoveryFilter) Name() string { return "recovery" }

func (f *RecoveryFilter) Init(context.Context) error {
	if f.fallback == nil {
		return errors.New("recovery filter: nil fallback")
	}
	return nil
}

func (f *RecoveryFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	hash, err := chain.DoFilter(ctx, payload)
	if err == nil {
		return hash, nil
	}
	if f.when != nil && !f.when(err) {
		return hash, err
	}

	recovered, ferr := f.fallback(ctx, payload, err)
	if ferr != nil {
		return "", ferr
	}
	if tc := TxContextFrom(ctx); tc != nil {
		tc.Recovered = true
	}
	return recovered, nil
}

func (f *RecoveryFilter) Destroy() error { return nil }
