// internal/blockchain/solbc/transaction/fees.go
package transaction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solana/programs/computebudget"
)

// FeeAttacher добавляет инструкции бюджета и обновляет якорь валидности.
type FeeAttacher struct {
	client     blockchain.Client
	logger     *zap.Logger
	commitment rpc.CommitmentType
}

func NewFeeAttacher(client blockchain.Client, logger *zap.Logger, commitment rpc.CommitmentType) *FeeAttacher {
	return &FeeAttacher{
		client:     client,
		logger:     logger.Named("fee-attacher"),
		commitment: NormalizeCommitment(commitment),
	}
}

// AttachBudget ставит SetComputeUnitPrice и SetComputeUnitLimit перед инструкциями
// вызывающего, не меняя их порядок, и берет свежий blockhash.
func (f *FeeAttacher) AttachBudget(ctx context.Context, msg EstimatedMessage, microLamports uint64) (FinalizedMessage, error) {
	if len(msg.instructions) == 0 {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget",
			fmt.Errorf("no instructions to finalize: %w", ErrInvalidInstruction))
	}
	for i, ix := range msg.instructions {
		if computebudget.IsLimitOrPrice(ix) {
			return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget",
				fmt.Errorf("instruction %d: %w", i, ErrBudgetAlreadySet))
		}
	}

	price, err := computebudget.NewSetComputeUnitPrice(microLamports)
	if err != nil {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget", err)
	}
	limit, err := computebudget.NewSetComputeUnitLimit(msg.computeUnits)
	if err != nil {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget", err)
	}

	instructions := make([]solana.Instruction, 0, len(msg.instructions)+2)
	instructions = append(instructions, price, limit)
	instructions = append(instructions, msg.instructions...)

	anchor, err := f.client.GetLatestBlockhash(ctx, f.commitment)
	if err != nil {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureTransport, "AttachBudget", err)
	}

	tx, err := compile(instructions, msg.feePayer, anchor)
	if err != nil {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return FinalizedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "AttachBudget", err)
	}

	f.logger.Info("Compute budget attached",
		zap.Uint32("compute_unit_limit", msg.computeUnits),
		zap.Uint64("compute_unit_price", microLamports),
		zap.String("blockhash", anchor.Blockhash.String()),
		zap.Uint64("last_valid_block_height", anchor.LastValidBlockHeight))

	return FinalizedMessage{
		instructions:  instructions,
		feePayer:      msg.feePayer,
		anchor:        anchor,
		computeUnits:  msg.computeUnits,
		microLamports: microLamports,
		message:       message,
	}, nil
}
