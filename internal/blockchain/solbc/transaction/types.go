// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrMissingFeePayer    = errors.New("fee payer is not set")
	ErrBudgetAlreadySet   = errors.New("instructions already set compute unit limit or price")
	ErrPayerMismatch      = errors.New("credential does not match fee payer")
)

const defaultBlockHeightPollInterval = 2 * time.Second

// Config задает параметры отправки и ожидания подтверждения.
type Config struct {
	// Commitment – уровень подтверждения, которого ждёт конвейер.
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	// MaxRetries передается узлу как есть; 0 отключает повторную отправку узлом, nil оставляет умолчание узла.
	MaxRetries *uint
	// Интервал опроса высоты блока при ожидании подтверждения.
	BlockHeightPollInterval time.Duration
}

// SubmitOptions are the per-submission knobs of SubmitAndConfirm.
type SubmitOptions struct {
	SkipPreflight bool
	MaxRetries    *uint
}

func (c Config) submitOptions() SubmitOptions {
	return SubmitOptions{SkipPreflight: c.SkipPreflight, MaxRetries: c.MaxRetries}
}

// Status описывает подтвержденную транзакцию.
type Status struct {
	Signature string    `json:"signature"`
	Status    string    `json:"status"`
	Slot      uint64    `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
}

// NormalizeCommitment maps the configured level onto the three levels a signature
// subscription understands. Unknown values fall back to confirmed.
func NormalizeCommitment(c rpc.CommitmentType) rpc.CommitmentType {
	switch c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c
	default:
		return rpc.CommitmentConfirmed
	}
}
