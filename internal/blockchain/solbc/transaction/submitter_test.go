package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
)

func newTestSubmitter(client *MockClient) *Submitter {
	return NewSubmitter(client, zap.NewNop(), solbc.NewErrorAnalyzer(zap.NewNop(), nil), 10*time.Millisecond)
}

func signedFor(t *testing.T) SignedTransaction {
	key := testKey(t)
	signed, err := Sign(finalizedFor(t, key, 2000, 100_000), key)
	require.NoError(t, err)
	return signed
}

func TestSubmitAndConfirmSuccess(t *testing.T) {
	signed := signedFor(t)
	maxRetries := uint(0)

	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, blockchain.TransactionOptions{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &maxRetries,
	}).Return(signed.Signature(), nil).Once()

	sub := newFakeSubscription(&blockchain.SignatureNotification{Slot: 321})
	client.On("SubscribeSignature", mock.Anything, signed.Signature(), rpc.CommitmentConfirmed).Return(sub, nil).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(uint64(10), nil).Maybe()
	expectUnknownStatus(client)

	status, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed,
		SubmitOptions{MaxRetries: &maxRetries})
	require.NoError(t, err)
	assert.Equal(t, signed.Signature().String(), status.Signature)
	assert.Equal(t, "confirmed", status.Status)
	assert.Equal(t, uint64(321), status.Slot)

	select {
	case <-sub.unsubscribed:
	default:
		t.Fatal("subscription was not closed")
	}
	client.AssertExpectations(t)
}

func TestSubmitAndConfirmPreflightFailure(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).
		Return(solana.Signature{}, fmt.Errorf("rpc: %w", preflightError(customInstructionError(2, 1)))).Once()

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	require.ErrorIs(t, err, blockchain.ErrPreflight)

	var f *blockchain.Failure
	require.True(t, errors.As(err, &f))
	require.NotNil(t, f.Preflight)
	assert.Equal(t, -32002, f.Preflight.Code)
	require.NotNil(t, f.Preflight.Cause)
	assert.Equal(t, uint32(1), *f.Preflight.Cause.CustomCode)
	client.AssertNotCalled(t, "SubscribeSignature", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitAndConfirmSkipPreflightNeverYieldsPreflightFailure(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything,
		mock.MatchedBy(func(o blockchain.TransactionOptions) bool { return o.SkipPreflight })).
		Return(solana.Signature{}, preflightError(customInstructionError(2, 1))).Once()

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{SkipPreflight: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, blockchain.ErrTransport)
	assert.NotErrorIs(t, err, blockchain.ErrPreflight)

	var f *blockchain.Failure
	require.True(t, errors.As(err, &f))
	assert.Nil(t, f.Preflight)
}

func TestSubmitAndConfirmTransportError(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	cause := errors.New("dial tcp 127.0.0.1:8899: connection refused")
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).
		Return(solana.Signature{}, cause).Once()

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	assert.ErrorIs(t, err, blockchain.ErrTransport)
	assert.ErrorIs(t, err, cause)
}

func TestSubmitAndConfirmExpiry(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()

	// Уведомление так и не приходит.
	sub := newFakeSubscription()
	client.On("SubscribeSignature", mock.Anything, signed.Signature(), rpc.CommitmentFinalized).Return(sub, nil).Once()

	last := signed.Anchor().LastValidBlockHeight
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(last, nil).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(last+1, nil)
	expectUnknownStatus(client)

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentFinalized, SubmitOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, blockchain.ErrExpired)
	assert.Equal(t, blockchain.FailureExpired, blockchain.KindOf(err))
}

func TestSubmitAndConfirmExecutionError(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()

	sub := newFakeSubscription(&blockchain.SignatureNotification{Slot: 7, Err: customInstructionError(2, 1)})
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(sub, nil).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(uint64(1), nil).Maybe()
	expectUnknownStatus(client)

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentProcessed, SubmitOptions{SkipPreflight: true})
	assert.ErrorIs(t, err, blockchain.ErrExecution)
	assert.NotErrorIs(t, err, blockchain.ErrPreflight)
}

func TestSubmitAndConfirmSubscriptionFailure(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("websocket: bad handshake")).Once()

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	assert.ErrorIs(t, err, blockchain.ErrTransport)
}

func TestSubmitAndConfirmAbandonedWait(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(newFakeSubscription(), nil).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(uint64(1), nil).Maybe()
	expectUnknownStatus(client)

	ctx, cancel := context.WithTimeout(testContext(t), 50*time.Millisecond)
	defer cancel()

	_, err := newTestSubmitter(client).SubmitAndConfirm(ctx, signed, rpc.CommitmentConfirmed, SubmitOptions{})
	require.Error(t, err)
	assert.Equal(t, blockchain.FailureTransport, blockchain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitAndConfirmLandedBeforeSubscription(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()

	// Уведомление уже было отправлено до подписки и больше не придет.
	sub := newFakeSubscription()
	client.On("SubscribeSignature", mock.Anything, signed.Signature(), rpc.CommitmentConfirmed).Return(sub, nil).Once()
	client.On("GetSignatureStatuses", mock.Anything, []solana.Signature{signed.Signature()}).
		Return([]*blockchain.SignatureStatus{{Slot: 99, ConfirmationStatus: rpc.ConfirmationStatusFinalized}}, nil).Once()

	status, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), status.Slot)
	assert.Equal(t, "confirmed", status.Status)
	client.AssertNotCalled(t, "GetBlockHeight", mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestSubmitAndConfirmLandedFoundAtExpiry(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(newFakeSubscription(), nil).Once()

	last := signed.Anchor().LastValidBlockHeight
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(last+1, nil)
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return([]*blockchain.SignatureStatus{nil}, nil).Once()
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return([]*blockchain.SignatureStatus{{Slot: 480, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}}, nil)

	status, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(480), status.Slot)
	client.AssertNumberOfCalls(t, "GetSignatureStatuses", 2)
}

func TestSubmitAndConfirmStatusBelowLevelExpires(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(newFakeSubscription(), nil).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(signed.Anchor().LastValidBlockHeight+1, nil)
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return([]*blockchain.SignatureStatus{{Slot: 480, ConfirmationStatus: rpc.ConfirmationStatusProcessed}}, nil)

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentFinalized, SubmitOptions{})
	assert.ErrorIs(t, err, blockchain.ErrExpired)
}

func TestSubmitAndConfirmStatusCarriesExecutionError(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).Return(newFakeSubscription(), nil).Once()
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return([]*blockchain.SignatureStatus{{
			Slot:               12,
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
			Err:                customInstructionError(2, 1),
		}}, nil).Once()

	_, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	assert.ErrorIs(t, err, blockchain.ErrExecution)
}

func TestSubmitAndConfirmStatusLookupFailureKeepsWaiting(t *testing.T) {
	signed := signedFor(t)
	client := new(MockClient)
	client.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(signed.Signature(), nil).Once()
	client.On("SubscribeSignature", mock.Anything, mock.Anything, mock.Anything).
		Return(newFakeSubscription(&blockchain.SignatureNotification{Slot: 55}), nil).Once()
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return(nil, errors.New("429 too many requests")).Once()
	client.On("GetBlockHeight", mock.Anything, mock.Anything).Return(uint64(1), nil).Maybe()

	status, err := newTestSubmitter(client).SubmitAndConfirm(testContext(t), signed, rpc.CommitmentConfirmed, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), status.Slot)
}

func TestCommitmentReached(t *testing.T) {
	tests := []struct {
		status rpc.ConfirmationStatusType
		level  rpc.CommitmentType
		want   bool
	}{
		{rpc.ConfirmationStatusProcessed, rpc.CommitmentProcessed, true},
		{rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed, false},
		{rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed, true},
		{rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed, true},
		{rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized, false},
		{"", rpc.CommitmentProcessed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, commitmentReached(tt.status, tt.level))
		})
	}
}

func TestNormalizeCommitment(t *testing.T) {
	assert.Equal(t, rpc.CommitmentProcessed, NormalizeCommitment(rpc.CommitmentProcessed))
	assert.Equal(t, rpc.CommitmentFinalized, NormalizeCommitment(rpc.CommitmentFinalized))
	assert.Equal(t, rpc.CommitmentConfirmed, NormalizeCommitment(""))
	assert.Equal(t, rpc.CommitmentConfirmed, NormalizeCommitment(rpc.CommitmentRecent))
}
