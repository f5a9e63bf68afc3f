// internal/blockchain/solbc/transaction/estimator.go
package transaction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solana/programs/computebudget"
)

// Estimator оценивает потребление compute units через симуляцию.
type Estimator struct {
	client blockchain.Client
	logger *zap.Logger
}

func NewEstimator(client blockchain.Client, logger *zap.Logger) *Estimator {
	return &Estimator{
		client: client,
		logger: logger.Named("cu-estimator"),
	}
}

// Estimate симулирует сообщение и вычисляет лимит compute units.
// Если в сообщении нет SetComputeUnitLimit, на время симуляции добавляется максимальный лимит,
// чтобы измерение не упиралось в лимит по умолчанию.
func (e *Estimator) Estimate(ctx context.Context, msg UnsignedMessage) (EstimatedMessage, error) {
	instructions, err := simulationInstructions(msg.instructions)
	if err != nil {
		return EstimatedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "Estimate", err)
	}

	tx, err := compile(instructions, msg.feePayer, msg.anchor)
	if err != nil {
		return EstimatedMessage{}, blockchain.NewFailure(blockchain.FailureBuild, "Estimate", err)
	}
	// Подписи-заглушки: узел не проверяет их при симуляции.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	result, err := e.client.SimulateTransaction(ctx, tx)
	if err != nil {
		e.logger.Error("Simulation request failed", zap.Error(err))
		return EstimatedMessage{}, blockchain.NewFailure(blockchain.FailureSimulation, "Estimate", err)
	}

	if result.Err != nil {
		cause := blockchain.ParseTransactionError(result.Err)
		e.logger.Warn("Simulation reported an error",
			zap.String("error", cause.Error()),
			zap.Uint64("units_consumed", result.UnitsConsumed),
			zap.Strings("logs", result.Logs))
		f := blockchain.NewFailure(blockchain.FailureSimulation, "Estimate", cause)
		f.Simulation = result
		return EstimatedMessage{}, f
	}

	units := computebudget.LimitFromConsumed(result.UnitsConsumed)
	e.logger.Info("Compute units estimated",
		zap.Uint64("consumed", result.UnitsConsumed),
		zap.Uint32("limit", units))

	return EstimatedMessage{
		UnsignedMessage: msg,
		computeUnits:    units,
		unitsConsumed:   result.UnitsConsumed,
	}, nil
}

func simulationInstructions(instructions []solana.Instruction) ([]solana.Instruction, error) {
	for _, ix := range instructions {
		if d, ok := computebudget.Discriminator(ix); ok && d == computebudget.SetComputeUnitLimit {
			return cloneInstructions(instructions), nil
		}
	}

	limit, err := computebudget.NewSetComputeUnitLimit(computebudget.MaxComputeUnitLimit)
	if err != nil {
		return nil, fmt.Errorf("simulation limit: %w", err)
	}
	return append([]solana.Instruction{limit}, instructions...), nil
}
