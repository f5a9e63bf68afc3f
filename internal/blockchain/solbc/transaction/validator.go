// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

// ValidateTransaction проверяет подписанную транзакцию перед отправкой.
func (v *Validator) ValidateTransaction(signed SignedTransaction) error {
	tx := signed.transaction()

	if err := v.ValidateSignatures(tx); err != nil {
		return blockchain.NewFailure(blockchain.FailureSigning, "Validate", err)
	}

	if err := v.ValidateBlockhash(tx); err != nil {
		return blockchain.NewFailure(blockchain.FailureBuild, "Validate", err)
	}

	if err := v.ValidateInstructions(tx.Message.Instructions); err != nil {
		return blockchain.NewFailure(blockchain.FailureBuild, "Validate", err)
	}

	return nil
}

func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) == 0 || len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d, need %d", ErrInvalidSignature, len(tx.Signatures), required)
	}
	if err := tx.VerifySignatures(); err != nil {
		v.logger.Debug("Signature verification failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}
