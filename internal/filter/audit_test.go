package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/roochguard/api"
)

func TestAuditFilter_RecordsSubmission(t *testing.T) {
	store := &memStore{}
	fc := newClient(t, returning("0xhash", nil), NewAuditFilter(store, nil))

	_, err := fc.SendRawTransaction(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)

	rec := store.last()
	require.NotNil(t, rec)
	assert.Equal(t, api.MethodSendRawTransaction, rec.Method)
	assert.Equal(t, 3, rec.PayloadSize)
	assert.Equal(t, "039058c6f2c0cb492c533b0a4d14ef77cc0f78abccced5287d84a1a2011cfb81", rec.PayloadHash)
	assert.Equal(t, "0xhash", rec.TxHash)
	assert.Equal(t, api.VerdictAllow, rec.Verdict)
	assert.Equal(t, api.OutcomeSubmitted, rec.Outcome)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.Error)
}

func TestAuditFilter_RecordsRejection(t *testing.T) {
	store := &memStore{}
	fc := newClient(t, returning("0xhash", nil), NewAuditFilter(store, nil), NewValidationFilter(2))

	_, err := fc.SendRawTransaction(context.Background(), []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrPayloadRejected)

	rec := store.last()
	require.NotNil(t, rec)
	assert.Equal(t, api.VerdictDeny, rec.Verdict)
	assert.Equal(t, "validation:max_size", rec.Rule)
	assert.Equal(t, api.OutcomeRejected, rec.Outcome)
	assert.Zero(t, rec.Attempts)
	assert.NotEmpty(t, rec.Error)
}

func TestAuditFilter_RecordsFailureAndRecovery(t *testing.T) {
	store := &memStore{}
	fc := newClient(t, returning("", errMock), NewAuditFilter(store, nil))
	_, err := fc.SendRawTransaction(context.Background(), []byte{1})
	require.ErrorIs(t, err, errMock)
	assert.Equal(t, api.OutcomeFailed, store.last().Outcome)
	assert.Equal(t, "mock error", store.last().Error)

	recovering := newClient(t, returning("", errMock),
		NewAuditFilter(store, nil),
		NewRecoveryFilter(StaticFallback("errorHandledTransactionId")),
	)
	hash, err := recovering.SendRawTransaction(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "errorHandledTransactionId", store.last().TxHash)
	assert.Equal(t, api.OutcomeRecovered, store.last().Outcome)
	assert.Equal(t, "errorHandledTransactionId", hash)
}

func TestAuditFilter_WriteErrorDoesNotChangeResult(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	fc := newClient(t, returning("tx1", nil), NewAuditFilter(store, nil))

	hash, err := fc.SendRawTransaction(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "tx1", hash)
}

func TestAuditFilter_WritesAfterCancellation(t *testing.T) {
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	mock := newMockClient(func(context.Context, []byte) (string, error) {
		cancel()
		return "", context.Canceled
	})
	fc := newClient(t, mock, NewAuditFilter(store, nil))

	_, err := fc.SendRawTransaction(ctx, []byte{1})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, store.last())
	assert.Less(t, store.last().Duration, time.Minute)
}
