package filter

import (
	"time"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/audit"
	"github.com/tkingovr/roochguard/internal/policy"
)

// ChainConfig holds the configuration for building the submission chain.
type ChainConfig struct {
	Engine          policy.Engine
	Approvals       *approval.Queue
	AuditStore      audit.Store
	Logger          *zap.Logger
	MaxPayloadBytes int
	RateLimit       *RateLimitConfig
	Retry           *RetryConfig
}

// BuildFilters returns the standard filter order:
// audit, logging, validation, rate limit, policy, retry.
// Audit and policy are omitted when their dependencies are nil; rate
// limit and retry when unconfigured.
func BuildFilters(cfg ChainConfig) []TransactionFilter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var filters []TransactionFilter

	// Audit is always first so it records every decision below it
	if cfg.AuditStore != nil {
		filters = append(filters, NewAuditFilter(cfg.AuditStore, logger))
	}

	filters = append(filters,
		NewLoggingFilter(logger),
		NewValidationFilter(cfg.MaxPayloadBytes),
	)

	if cfg.RateLimit != nil {
		filters = append(filters, NewRateLimitFilter(*cfg.RateLimit))
	}

	if cfg.Engine != nil {
		filters = append(filters, NewPolicyFilter(cfg.Engine, cfg.Approvals))
	}

	// Retry sits closest to the node so a retry never re-runs the policy
	if cfg.Retry != nil {
		filters = append(filters, NewRetryFilter(*cfg.Retry, logger))
	}

	return filters
}

// RateLimitConfigFromPolicy converts policy rate limit settings to filter config.
func RateLimitConfigFromPolicy(settings *policy.RateLimitSettings) *RateLimitConfig {
	if settings == nil {
		return nil
	}

	cfg := &RateLimitConfig{
		PerMethod: make(map[string]*RateLimit),
	}

	if settings.Global != nil {
		d, err := time.ParseDuration(settings.Global.Window)
		if err == nil {
			cfg.Global = &RateLimit{Max: settings.Global.Max, Window: d}
		}
	}

	for method, rule := range settings.PerMethod {
		d, err := time.ParseDuration(rule.Window)
		if err == nil {
			cfg.PerMethod[method] = &RateLimit{Max: rule.Max, Window: d}
		}
	}

	return cfg
}

// RetryConfigFromPolicy converts policy retry settings to filter config.
// Unset fields keep their defaults.
func RetryConfigFromPolicy(settings *policy.RetrySettings) *RetryConfig {
	if settings == nil {
		return nil
	}
	cfg := DefaultRetryConfig()
	if settings.MaxAttempts > 0 {
		cfg.MaxAttempts = settings.MaxAttempts
	}
	if d, err := time.ParseDuration(settings.InitialBackoff); err == nil && d > 0 {
		cfg.InitialBackoff = d
	}
	if d, err := time.ParseDuration(settings.MaxBackoff); err == nil && d > 0 {
		cfg.MaxBackoff = d
	}
	return &cfg
}
