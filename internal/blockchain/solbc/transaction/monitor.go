// internal/blockchain/solbc/transaction/monitor.go
package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

type Monitor struct {
	client       blockchain.Client
	logger       *zap.Logger
	pollInterval time.Duration
}

func NewMonitor(client blockchain.Client, logger *zap.Logger, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = defaultBlockHeightPollInterval
	}
	return &Monitor{
		client:       client,
		logger:       logger.Named("tx-monitor"),
		pollInterval: pollInterval,
	}
}

// AwaitConfirmation ждет уведомления по подписке до заданного уровня подтверждения.
// Параллельно опрашивается высота блока: как только она превысит LastValidBlockHeight
// якоря, ожидание прерывается с ErrExpired. Подписка открывается после отправки,
// поэтому статус подписи проверяется сразу после подписки и еще раз перед ErrExpired.
func (m *Monitor) AwaitConfirmation(ctx context.Context, signature solana.Signature, anchor blockchain.ValidityAnchor, level rpc.CommitmentType) (*Status, error) {
	level = NormalizeCommitment(level)

	sub, err := m.client.SubscribeSignature(ctx, signature, level)
	if err != nil {
		return nil, blockchain.NewFailure(blockchain.FailureTransport, "AwaitConfirmation", err)
	}
	defer sub.Unsubscribe()

	if status, err := m.checkStatus(ctx, signature, level); err != nil || status != nil {
		return status, err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(waitCtx)

	var (
		mu     sync.Mutex
		status *Status
	)
	// resolve фиксирует первый полученный статус и останавливает вторую горутину.
	resolve := func(s *Status) {
		mu.Lock()
		if status == nil {
			status = s
		}
		mu.Unlock()
		cancel()
	}

	g.Go(func() error {
		n, err := sub.Recv(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return blockchain.NewFailure(blockchain.FailureTransport, "AwaitConfirmation", err)
		}
		if n.Err != nil {
			return m.executionFailure(signature, n.Slot, n.Err)
		}

		resolve(&Status{
			Signature: signature.String(),
			Status:    string(level),
			Slot:      n.Slot,
			Timestamp: time.Now(),
		})
		return nil
	})

	g.Go(func() error {
		s, err := m.watchExpiry(gctx, signature, anchor, level)
		if err != nil {
			return err
		}
		if s != nil {
			resolve(s)
		}
		return nil
	})

	err = g.Wait()
	mu.Lock()
	defer mu.Unlock()
	if status != nil {
		return status, nil
	}
	if err != nil {
		if blockchain.KindOf(err) == blockchain.FailureUnknown {
			// ожидание прервано вызывающим (таймаут или отмена)
			return nil, blockchain.NewFailure(blockchain.FailureTransport, "AwaitConfirmation", err)
		}
		return nil, err
	}
	return nil, blockchain.NewFailure(blockchain.FailureTransport, "AwaitConfirmation", ctx.Err())
}

// watchExpiry возвращает статус, если подпись нашлась в момент истечения якоря.
func (m *Monitor) watchExpiry(ctx context.Context, signature solana.Signature, anchor blockchain.ValidityAnchor, level rpc.CommitmentType) (*Status, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		height, err := m.client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, nil
			}
			m.logger.Warn("Block height check failed", zap.Error(err))
		case anchor.ExpiredAt(height):
			if status, err := m.checkStatus(ctx, signature, level); err != nil || status != nil {
				return status, err
			}
			if ctx.Err() != nil {
				return nil, nil
			}
			m.logger.Warn("Validity anchor expired before confirmation",
				zap.String("signature", signature.String()),
				zap.Uint64("block_height", height),
				zap.Uint64("last_valid_block_height", anchor.LastValidBlockHeight))
			return nil, blockchain.NewFailure(blockchain.FailureExpired, "AwaitConfirmation",
				fmt.Errorf("block height %d exceeds last valid block height %d: %w",
					height, anchor.LastValidBlockHeight, blockchain.ErrExpired))
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}
	}
}

// checkStatus спрашивает узел о подписи напрямую. Пока уровень не достигнут, возвращает nil, nil;
// ошибка запроса только логируется, ожидание продолжается.
func (m *Monitor) checkStatus(ctx context.Context, signature solana.Signature, level rpc.CommitmentType) (*Status, error) {
	statuses, err := m.client.GetSignatureStatuses(ctx, []solana.Signature{signature})
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("Signature status check failed",
				zap.String("signature", signature.String()),
				zap.Error(err))
		}
		return nil, nil
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return nil, nil
	}

	st := statuses[0]
	if !commitmentReached(st.ConfirmationStatus, level) {
		return nil, nil
	}
	if st.Err != nil {
		return nil, m.executionFailure(signature, st.Slot, st.Err)
	}

	m.logger.Debug("Signature status already at requested commitment",
		zap.String("signature", signature.String()),
		zap.String("confirmation_status", string(st.ConfirmationStatus)),
		zap.Uint64("slot", st.Slot))
	return &Status{
		Signature: signature.String(),
		Status:    string(level),
		Slot:      st.Slot,
		Timestamp: time.Now(),
	}, nil
}

func (m *Monitor) executionFailure(signature solana.Signature, slot uint64, errValue interface{}) error {
	cause := blockchain.ParseTransactionError(errValue)
	m.logger.Warn("Transaction landed with error",
		zap.String("signature", signature.String()),
		zap.Uint64("slot", slot),
		zap.String("error", cause.Error()))
	return blockchain.NewFailure(blockchain.FailureExecution, "AwaitConfirmation", cause)
}

func commitmentRank(level string) int {
	switch level {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	default:
		return 0
	}
}

// commitmentReached сравнивает confirmationStatus узла с ожидаемым уровнем.
func commitmentReached(status rpc.ConfirmationStatusType, level rpc.CommitmentType) bool {
	got := commitmentRank(string(status))
	return got > 0 && got >= commitmentRank(string(level))
}
