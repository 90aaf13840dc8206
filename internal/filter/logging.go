package filter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingFilter logs every submission and its result.
type LoggingFilter struct {
	logger *zap.Logger
}

func NewLoggingFilter(logger *zap.Logger) *LoggingFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingFilter{logger: logger.Named("tx")}
}

func (f *LoggingFilter) Name() string { return "logging" }

func (f *LoggingFilter) Init(context.Context) error { return nil }

func (f *LoggingFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	start := time.Now()
	fields := []zap.Field{zap.Int("size", len(payload))}
	if tc := TxContextFrom(ctx); tc != nil {
		fields = append(fields, zap.String("method", tc.Method), zap.String("payload_hash", tc.PayloadHash))
	}
	f.logger.Debug("submitting transaction", fields...)

	hash, err := chain.DoFilter(ctx, payload)

	fields = append(fields, zap.Duration("duration", time.Since(start)))
	switch {
	case err == nil:
		f.logger.Info("transaction submitted", append(fields, zap.String("tx_hash", hash))...)
	case IsRejection(err):
		f.logger.Warn("transaction rejected", append(fields, zap.Error(err))...)
	default:
		f.logger.Error("transaction failed", append(fields, zap.Error(err))...)
	}
	return hash, err
}

func (f *LoggingFilter) Destroy() error {
	// Sync errors on stderr/stdout are not actionable.
	_ = f.logger.Sync()
	return nil
}
