// internal/blockchain/solbc/transaction/submitter.go
package transaction

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
)

// Submitter отправляет подписанную транзакцию ровно один раз и ждет подтверждения.
type Submitter struct {
	client    blockchain.Client
	logger    *zap.Logger
	validator *Validator
	monitor   *Monitor
	analyzer  *solbc.ErrorAnalyzer
}

func NewSubmitter(client blockchain.Client, logger *zap.Logger, analyzer *solbc.ErrorAnalyzer, pollInterval time.Duration) *Submitter {
	return &Submitter{
		client:    client,
		logger:    logger.Named("tx-submitter"),
		validator: NewValidator(logger),
		monitor:   NewMonitor(client, logger, pollInterval),
		analyzer:  analyzer,
	}
}

// SubmitAndConfirm отправляет транзакцию и ждет уровня level.
// Отказ preflight-симуляции возвращается как Failure с Kind == FailurePreflight и
// заполненным Preflight. При SkipPreflight ошибки отправки всегда транспортные.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, signed SignedTransaction, level rpc.CommitmentType, opts SubmitOptions) (*Status, error) {
	level = NormalizeCommitment(level)

	if err := s.validator.ValidateTransaction(signed); err != nil {
		s.logger.Error("Transaction validation failed", zap.Error(err))
		return nil, err
	}

	signature, err := s.client.SendTransactionWithOpts(ctx, signed.transaction(), blockchain.TransactionOptions{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: level,
		MaxRetries:          opts.MaxRetries,
	})
	if err != nil {
		if !opts.SkipPreflight {
			if pf, ok := s.analyzer.AsPreflightFailure(err); ok {
				f := blockchain.NewFailure(blockchain.FailurePreflight, "SubmitAndConfirm", err)
				f.Preflight = pf
				return nil, f
			}
		}
		s.logger.Error("Failed to send transaction", zap.Error(err))
		return nil, blockchain.NewFailure(blockchain.FailureTransport, "SubmitAndConfirm", err)
	}

	s.logger.Info("Transaction sent",
		zap.String("signature", signature.String()),
		zap.Bool("skip_preflight", opts.SkipPreflight))

	status, err := s.monitor.AwaitConfirmation(ctx, signature, signed.Anchor(), level)
	if err != nil {
		s.logger.Error("Transaction confirmation failed",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, err
	}
	return status, nil
}
