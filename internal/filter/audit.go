package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/audit"
)

// AuditFilter wraps the rest of the chain and writes one audit record per
// submission, whether it was submitted, recovered, rejected or failed. It
// belongs first in the chain so it sees every decision made after it.
type AuditFilter struct {
	store  audit.Writer
	logger *zap.Logger
}

func NewAuditFilter(store audit.Writer, logger *zap.Logger) *AuditFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditFilter{store: store, logger: logger}
}

func (f *AuditFilter) Name() string { return "audit" }

func (f *AuditFilter) Init(context.Context) error { return nil }

func (f *AuditFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	hash, err := chain.DoFilter(ctx, payload)

	tc := TxContextFrom(ctx)
	if tc == nil {
		return hash, err
	}
	// The submission has already happened; a failed write must not change
	// what the caller sees.
	if werr := f.store.Write(context.WithoutCancel(ctx), tc.ToAuditRecord(hash, err)); werr != nil {
		f.logger.Error("writing audit record", zap.Error(werr), zap.String("payload_hash", tc.PayloadHash))
	}
	return hash, err
}

// Destroy does not close the store; its owner does.
func (f *AuditFilter) Destroy() error { return nil }
