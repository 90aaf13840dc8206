package filter

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/client"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf retries transport failures and retryable HTTP statuses.
// Filter rejections, JSON-RPC errors from the node and context errors are
// final: resubmitting would not change the answer.
func DefaultRetryIf(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsRejection(err) {
		return false
	}
	var rpcErr *api.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return true
}

// RetryFilter re-runs the downstream chain on retryable failures with
// exponential backoff.
type RetryFilter struct {
	cfg    RetryConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryFilter creates a retry filter. Zero fields in cfg take defaults.
func NewRetryFilter(cfg RetryConfig, logger *zap.Logger) *RetryFilter {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryFilter{cfg: cfg, logger: logger, sleep: sleepCtx}
}

func (f *RetryFilter) Name() string { return "retry" }

func (f *RetryFilter) Init(context.Context) error { return nil }

func (f *RetryFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		hash, err := chain.DoFilter(ctx, payload)
		if err == nil {
			return hash, nil
		}
		lastErr = err

		if !f.cfg.RetryIf(err) || attempt == f.cfg.MaxAttempts {
			break
		}

		backoff := f.backoff(attempt)
		f.logger.Warn("retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := f.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (f *RetryFilter) Destroy() error { return nil }

// backoff returns initial * factor^(attempt-1), jittered and capped.
func (f *RetryFilter) backoff(attempt int) time.Duration {
	d := float64(f.cfg.InitialBackoff) * math.Pow(f.cfg.BackoffFactor, float64(attempt-1))
	if f.cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * f.cfg.Jitter
	}
	if d > float64(f.cfg.MaxBackoff) {
		d = float64(f.cfg.MaxBackoff)
	}
	if d < 0 {
		d = float64(f.cfg.InitialBackoff)
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
