// internal/blockchain/solbc/transaction/priority.go
package transaction

import (
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

// DefaultPriorityFee – цена compute unit по умолчанию, micro-lamports.
const DefaultPriorityFee uint64 = 100_000

// PriorityFeeSource выбирает цену compute unit для сообщения.
type PriorityFeeSource interface {
	MicroLamports(ctx context.Context, msg EstimatedMessage) (uint64, error)
}

// StaticFee always returns the same price.
type StaticFee uint64

func (f StaticFee) MicroLamports(context.Context, EstimatedMessage) (uint64, error) {
	return uint64(f), nil
}

// RecentFee берет перцентиль недавних приоритетных комиссий по записываемым аккаунтам
// сообщения. Результат не опускается ниже Floor.
type RecentFee struct {
	client     blockchain.Client
	logger     *zap.Logger
	floor      uint64
	percentile int
}

func NewRecentFee(client blockchain.Client, logger *zap.Logger, floor uint64, percentile int) *RecentFee {
	if percentile <= 0 || percentile > 100 {
		percentile = 75
	}
	return &RecentFee{
		client:     client,
		logger:     logger.Named("priority-fee"),
		floor:      floor,
		percentile: percentile,
	}
}

func (f *RecentFee) MicroLamports(ctx context.Context, msg EstimatedMessage) (uint64, error) {
	accounts := writableAccounts(msg.instructions)

	samples, err := f.client.GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		return 0, blockchain.NewFailure(blockchain.FailureTransport, "PriorityFee", err)
	}

	fee := percentileFee(samples, f.percentile)
	if fee < f.floor {
		fee = f.floor
	}

	f.logger.Debug("Priority fee selected",
		zap.Int("samples", len(samples)),
		zap.Int("percentile", f.percentile),
		zap.Uint64("micro_lamports", fee))
	return fee, nil
}

// NewPriorityFeeSource создает источник по имени режима: "static" или "recent".
func NewPriorityFeeSource(mode string, client blockchain.Client, logger *zap.Logger, microLamports uint64, percentile int) (PriorityFeeSource, error) {
	switch mode {
	case "", "static":
		return StaticFee(microLamports), nil
	case "recent":
		return NewRecentFee(client, logger, microLamports, percentile), nil
	default:
		return nil, fmt.Errorf("unknown priority fee mode %q", mode)
	}
}

func percentileFee(samples []blockchain.PrioritizationFee, percentile int) uint64 {
	if len(samples) == 0 {
		return 0
	}
	fees := make([]uint64, 0, len(samples))
	for _, s := range samples {
		fees = append(fees, s.PrioritizationFee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	idx := (len(fees)*percentile + 99) / 100
	if idx > 0 {
		idx--
	}
	return fees[idx]
}

func writableAccounts(instructions []solana.Instruction) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{})
	var out []solana.PublicKey
	for _, ix := range instructions {
		for _, meta := range ix.Accounts() {
			if !meta.IsWritable {
				continue
			}
			if _, ok := seen[meta.PublicKey]; ok {
				continue
			}
			seen[meta.PublicKey] = struct{}{}
			out = append(out, meta.PublicKey)
		}
	}
	return out
}
