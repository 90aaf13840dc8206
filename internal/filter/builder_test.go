package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/audit"
	"github.com/tkingovr/roochguard/internal/policy"
)

func names(filters []TransactionFilter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = filterName(f)
	}
	return out
}

func TestBuildFilters_Minimal(t *testing.T) {
	filters := BuildFilters(ChainConfig{})
	assert.Equal(t, []string{"logging", "validation"}, names(filters))
}

func TestBuildFilters_Full(t *testing.T) {
	filters := BuildFilters(ChainConfig{
		Engine:     testEngine(t),
		AuditStore: &memStore{},
		Logger:     zap.NewNop(),
		RateLimit:  &RateLimitConfig{Global: &RateLimit{Max: 10, Window: time.Second}},
		Retry:      &RetryConfig{MaxAttempts: 2},
	})
	assert.Equal(t, []string{"audit", "logging", "validation", "rate_limit", "policy", "retry"}, names(filters))
}

func TestBuildFilters_EndToEnd(t *testing.T) {
	store, err := audit.NewJSONLStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	filters := BuildFilters(ChainConfig{
		Engine:          testEngine(t),
		AuditStore:      store,
		MaxPayloadBytes: 64,
		RateLimit:       &RateLimitConfig{Global: &RateLimit{Max: 2, Window: time.Minute}},
	})
	fc := newClient(t, returning("0xabc", nil), filters...)
	ctx := context.Background()

	hash, err := fc.SendRawTransaction(ctx, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)

	_, err = fc.SendRawTransaction(ctx, []byte{0xde, 0xad})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)

	_, err = fc.SendRawTransaction(ctx, []byte{0x01})
	require.ErrorIs(t, err, ErrRateLimited)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 1, stats.SubmittedCount)
	assert.Equal(t, 2, stats.ByOutcome[string(api.OutcomeRejected)])
}

func TestRateLimitConfigFromPolicy(t *testing.T) {
	assert.Nil(t, RateLimitConfigFromPolicy(nil))

	cfg := RateLimitConfigFromPolicy(&policy.RateLimitSettings{
		Global: &policy.RateLimitRule{Max: 5, Window: "1m"},
		PerMethod: map[string]*policy.RateLimitRule{
			api.MethodSendRawTransaction: {Max: 2, Window: "10s"},
		},
	})
	require.NotNil(t, cfg.Global)
	assert.Equal(t, RateLimit{Max: 5, Window: time.Minute}, *cfg.Global)
	assert.Equal(t, RateLimit{Max: 2, Window: 10 * time.Second}, *cfg.PerMethod[api.MethodSendRawTransaction])
}

func TestRetryConfigFromPolicy(t *testing.T) {
	assert.Nil(t, RetryConfigFromPolicy(nil))

	cfg := RetryConfigFromPolicy(&policy.RetrySettings{MaxAttempts: 5, MaxBackoff: "1s"})
	require.NotNil(t, cfg)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, cfg.InitialBackoff)
}
