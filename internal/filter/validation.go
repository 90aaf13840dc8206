package filter

import (
	"context"
	"fmt"
)

// DefaultMaxPayloadBytes bounds a raw transaction when no limit is configured.
const DefaultMaxPayloadBytes = 1 << 20

// ValidationFilter rejects payloads that cannot be valid transactions
// before anything else spends effort on them.
type ValidationFilter struct {
	maxBytes int
}

// NewValidationFilter creates a validation filter. maxBytes <= 0 selects
// DefaultMaxPayloadBytes.
func NewValidationFilter(maxBytes int) *ValidationFilter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &ValidationFilter{maxBytes: maxBytes}
}

func (f *ValidationFilter) Name() string { return "validation" }

func (f *ValidationFilter) Init(context.Context) error { return nil }

func (f *ValidationFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	tc := TxContextFrom(ctx)
	if len(payload) == 0 {
		tc.reject("validation:empty", "empty transaction payload")
		return "", ErrEmptyPayload
	}
	if len(payload) > f.maxBytes {
		msg := fmt.Sprintf("payload of %d bytes exceeds max %d", len(payload), f.maxBytes)
		tc.reject("validation:max_size", msg)
		return "", fmt.Errorf("%w: %s", ErrPayloadRejected, msg)
	}
	return chain.DoFilter(ctx, payload)
}

func (f *ValidationFilter) Destroy() error { return nil }
