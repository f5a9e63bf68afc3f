// internal/blockchain/solbc/transaction/builder.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

// Build собирает неподписанное сообщение. Сетевых вызовов нет.
// Пустой список инструкций допустим на этом шаге, но не пройдет AttachBudget.
func Build(instructions []solana.Instruction, feePayer solana.PublicKey, anchor blockchain.ValidityAnchor) (UnsignedMessage, error) {
	if feePayer == (solana.PublicKey{}) {
		return UnsignedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "Build", ErrMissingFeePayer)
	}
	if anchor.IsZero() {
		return UnsignedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "Build", ErrInvalidBlockhash)
	}
	for i, ix := range instructions {
		if ix == nil {
			return UnsignedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "Build",
				fmt.Errorf("instruction %d is nil: %w", i, ErrInvalidInstruction))
		}
	}

	return UnsignedMessage{
		instructions: cloneInstructions(instructions),
		feePayer:     feePayer,
		anchor:       anchor,
	}, nil
}
