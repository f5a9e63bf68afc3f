// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ValidityAnchor ссылается на недавнее состояние леджера и ограничивает время,
// в течение которого сообщение может быть принято сетью.
type ValidityAnchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// IsZero reports whether the anchor was never fetched.
func (a ValidityAnchor) IsZero() bool {
	return a.Blockhash == (solana.Hash{})
}

// ExpiredAt reports whether the anchor is no longer usable at the given block height.
func (a ValidityAnchor) ExpiredAt(blockHeight uint64) bool {
	return blockHeight > a.LastValidBlockHeight
}

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	// MaxRetries ограничивает повторную отправку на стороне узла; nil оставляет решение узлу.
	MaxRetries *uint
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// SignatureNotification is a status update delivered over a signature subscription.
type SignatureNotification struct {
	Slot uint64
	// Err is the execution error reported by the node, nil on success.
	Err interface{}
}

// SignatureSubscription streams status notifications for one submitted signature.
type SignatureSubscription interface {
	Recv(ctx context.Context) (*SignatureNotification, error)
	Unsubscribe()
}

// SignatureStatus – ответ getSignatureStatuses для одной подписи.
type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	// Err is the execution error, nil when the transaction succeeded.
	Err interface{}
}

// PrioritizationFee is one sample returned by getRecentPrioritizationFees.
type PrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// Client определяет транспорт, которым пользуется конвейер отправки транзакции.
type Client interface {
	// Получить последний blockhash вместе с высотой, до которой он действителен.
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (ValidityAnchor, error)
	// Получить текущую высоту блока.
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	// Симулировать транзакцию без изменения состояния.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Подписаться на уведомления о статусе подписи.
	SubscribeSignature(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (SignatureSubscription, error)
	// Получить статусы подписей; nil элемент означает, что узел подпись не знает.
	GetSignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]*SignatureStatus, error)
	// Недавние приоритетные комиссии для набора аккаунтов.
	GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]PrioritizationFee, error)
}
