// internal/blockchain/solbc/transaction/manager.go
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
)

// Outcome – итог одного прогона конвейера: подтвержденный статус либо диагноз preflight-отказа.
type Outcome struct {
	Signature     string           `json:"signature,omitempty"`
	Status        *Status          `json:"status,omitempty"`
	Diagnosis     *solbc.Diagnosis `json:"diagnosis,omitempty"`
	ComputeUnits  uint32           `json:"compute_units"`
	PriorityFee   uint64           `json:"priority_fee_micro_lamports"`
	UnitsConsumed uint64           `json:"units_consumed"`
}

// Confirmed reports whether the run ended with a confirmed transaction.
func (o *Outcome) Confirmed() bool { return o != nil && o.Status != nil }

// Manager проводит транзакцию через все этапы: build, estimate, attach budget, sign, submit.
type Manager struct {
	client    blockchain.Client
	logger    *zap.Logger
	config    Config
	estimator *Estimator
	fees      *FeeAttacher
	priority  PriorityFeeSource
	submitter *Submitter
	analyzer  *solbc.ErrorAnalyzer
	metrics   *Metrics
}

func NewManager(client blockchain.Client, logger *zap.Logger, config Config, priority PriorityFeeSource, metrics *Metrics) *Manager {
	if priority == nil {
		priority = StaticFee(DefaultPriorityFee)
	}
	config.Commitment = NormalizeCommitment(config.Commitment)
	analyzer := solbc.NewErrorAnalyzer(logger, nil)

	return &Manager{
		client:    client,
		logger:    logger.Named("tx-manager"),
		config:    config,
		estimator: NewEstimator(client, logger),
		fees:      NewFeeAttacher(client, logger, config.Commitment),
		priority:  priority,
		submitter: NewSubmitter(client, logger, analyzer, config.BlockHeightPollInterval),
		analyzer:  analyzer,
		metrics:   metrics,
	}
}

// Transfer переводит lamports с ключа плательщика на destination.
func (tm *Manager) Transfer(ctx context.Context, key solana.PrivateKey, destination solana.PublicKey, lamports uint64) (*Outcome, error) {
	if lamports == 0 {
		return nil, blockchain.NewFailure(blockchain.FailureBuild, "Transfer", errors.New("amount must be positive"))
	}
	if err := checkKey("Transfer", key); err != nil {
		return nil, err
	}
	ix := system.NewTransferInstruction(lamports, key.PublicKey(), destination).Build()
	return tm.Execute(ctx, []solana.Instruction{ix}, key)
}

// Execute прогоняет инструкции через конвейер. Отказ preflight диагностируется,
// логируется и возвращается в Outcome.Diagnosis без ошибки; остальные ошибки
// возвращаются вызывающему без изменений.
func (tm *Manager) Execute(ctx context.Context, instructions []solana.Instruction, key solana.PrivateKey) (outcome *Outcome, err error) {
	start := time.Now()
	defer func() {
		if tm.metrics == nil {
			return
		}
		tm.metrics.TrackTransaction(start)
		if outcome != nil && outcome.Diagnosis != nil {
			tm.metrics.RecordDiagnosed()
			return
		}
		tm.metrics.RecordResult(err)
	}()

	if err := checkKey("Execute", key); err != nil {
		return nil, err
	}
	payer := key.PublicKey()

	stageStart := time.Now()
	anchor, err := tm.client.GetLatestBlockhash(ctx, tm.config.Commitment)
	if err != nil {
		return nil, blockchain.NewFailure(blockchain.FailureTransport, "Execute", err)
	}
	unsigned, err := Build(instructions, payer, anchor)
	if err != nil {
		return nil, err
	}
	tm.trackStage("build", stageStart)
	tm.logger.Info("Transaction message built",
		zap.String("fee_payer", payer.String()),
		zap.Int("instructions", len(instructions)))

	stageStart = time.Now()
	estimated, err := tm.estimator.Estimate(ctx, unsigned)
	if err != nil {
		return nil, err
	}
	tm.trackStage("estimate", stageStart)

	stageStart = time.Now()
	fee, err := tm.priority.MicroLamports(ctx, estimated)
	if err != nil {
		return nil, err
	}
	finalized, err := tm.fees.AttachBudget(ctx, estimated, fee)
	if err != nil {
		return nil, err
	}
	tm.trackStage("attach_budget", stageStart)
	if tm.metrics != nil {
		tm.metrics.RecordBudget(finalized.ComputeUnits(), finalized.PriorityFee())
	}

	signed, err := Sign(finalized, key)
	if err != nil {
		return nil, err
	}
	tm.logger.Info("Transaction signed", zap.String("signature", signed.Signature().String()))

	outcome = &Outcome{
		Signature:     signed.Signature().String(),
		ComputeUnits:  finalized.ComputeUnits(),
		PriorityFee:   finalized.PriorityFee(),
		UnitsConsumed: estimated.UnitsConsumed(),
	}

	stageStart = time.Now()
	status, err := tm.submitter.SubmitAndConfirm(ctx, signed, tm.config.Commitment, tm.config.submitOptions())
	tm.trackStage("submit_and_confirm", stageStart)
	if err != nil {
		var f *blockchain.Failure
		if errors.As(err, &f) && f.Kind == blockchain.FailurePreflight && f.Preflight != nil {
			d := tm.analyzer.Diagnose(f.Preflight, finalized.ProgramIDs())
			tm.logger.Warn("Preflight simulation rejected transaction",
				zap.String("signature", outcome.Signature),
				zap.String("message", d.Message),
				zap.String("detail", d.Detail),
				zap.Bool("decoded", d.Decoded),
				zap.Strings("logs", d.Logs))
			tm.logger.Debug("Preflight diagnosis", zap.String("diagnosis", solbc.FormatDiagnosis(d)))
			outcome.Diagnosis = &d
			return outcome, nil
		}
		return nil, err
	}

	outcome.Status = status
	tm.logger.Info("Transaction confirmed",
		zap.String("signature", status.Signature),
		zap.String("commitment", status.Status),
		zap.Uint64("slot", status.Slot))
	return outcome, nil
}

func (tm *Manager) trackStage(stage string, start time.Time) {
	if tm.metrics != nil {
		tm.metrics.TrackStage(stage, start)
	}
}
