// internal/blockchain/solbc/transaction/mocks_test.go
package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

const defaultTestTimeout = 5 * time.Second

// MockClient реализует интерфейс blockchain.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (blockchain.ValidityAnchor, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(blockchain.ValidityAnchor), args.Error(1)
}

func (m *MockClient) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	if res := args.Get(0); res != nil {
		return res.(*blockchain.SimulationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) SubscribeSignature(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (blockchain.SignatureSubscription, error) {
	args := m.Called(ctx, signature, commitment)
	if sub := args.Get(0); sub != nil {
		return sub.(blockchain.SignatureSubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetSignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]*blockchain.SignatureStatus, error) {
	args := m.Called(ctx, signatures)
	if statuses := args.Get(0); statuses != nil {
		return statuses.([]*blockchain.SignatureStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]blockchain.PrioritizationFee, error) {
	args := m.Called(ctx, accounts)
	if fees := args.Get(0); fees != nil {
		return fees.([]blockchain.PrioritizationFee), args.Error(1)
	}
	return nil, args.Error(1)
}

// expectUnknownStatus: узел еще не знает подпись.
func expectUnknownStatus(client *MockClient) {
	client.On("GetSignatureStatuses", mock.Anything, mock.Anything).
		Return([]*blockchain.SignatureStatus{nil}, nil).Maybe()
}

// fakeSubscription отдает уведомления из канала; без уведомлений Recv ждет отмены контекста.
type fakeSubscription struct {
	notifications chan *blockchain.SignatureNotification
	unsubscribed  chan struct{}
}

func newFakeSubscription(n ...*blockchain.SignatureNotification) *fakeSubscription {
	s := &fakeSubscription{
		notifications: make(chan *blockchain.SignatureNotification, len(n)),
		unsubscribed:  make(chan struct{}),
	}
	for _, item := range n {
		s.notifications <- item
	}
	return s
}

func (s *fakeSubscription) Recv(ctx context.Context) (*blockchain.SignatureNotification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-s.notifications:
		return n, nil
	}
}

func (s *fakeSubscription) Unsubscribe() {
	close(s.unsubscribed)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	t.Cleanup(cancel)
	return ctx
}

func testAnchor(seed byte, lastValid uint64) blockchain.ValidityAnchor {
	return blockchain.ValidityAnchor{
		Blockhash:            solana.Hash{seed, 0xAA, seed},
		LastValidBlockHeight: lastValid,
	}
}

func testKey(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

var testDestination = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

func transferInstruction(from solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, testDestination).Build()
}

// preflightError повторяет ответ узла на отклоненную симуляцию.
func preflightError(errValue interface{}) error {
	return &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1",
		Data: map[string]interface{}{
			"err":           errValue,
			"logs":          []interface{}{"Transfer: insufficient lamports 0, need 1000"},
			"unitsConsumed": float64(150),
		},
	}
}

func customInstructionError(idx, code int) map[string]interface{} {
	return map[string]interface{}{
		"InstructionError": []interface{}{float64(idx), map[string]interface{}{"Custom": float64(code)}},
	}
}

// finalizedFor прогоняет перевод через Build/Estimate/AttachBudget на моках.
func finalizedFor(t *testing.T, key solana.PrivateKey, consumed uint64, fee uint64) FinalizedMessage {
	t.Helper()
	client := new(MockClient)
	client.On("SimulateTransaction", mock.Anything, mock.Anything).
		Return(&blockchain.SimulationResult{UnitsConsumed: consumed}, nil).Once()
	client.On("GetLatestBlockhash", mock.Anything, rpc.CommitmentConfirmed).
		Return(testAnchor(2, 500), nil).Once()

	unsigned, err := Build([]solana.Instruction{transferInstruction(key.PublicKey(), 1_000)}, key.PublicKey(), testAnchor(1, 400))
	require.NoError(t, err)

	est, err := NewEstimator(client, zap.NewNop()).Estimate(testContext(t), unsigned)
	require.NoError(t, err)

	fin, err := NewFeeAttacher(client, zap.NewNop(), rpc.CommitmentConfirmed).AttachBudget(testContext(t), est, fee)
	require.NoError(t, err)
	client.AssertExpectations(t)
	return fin
}
