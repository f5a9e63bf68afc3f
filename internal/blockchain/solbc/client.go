// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	solrpc "github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc/rpc"
)

const (
	readMaxTries       = 3
	readInitialBackoff = 200 * time.Millisecond
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
// Запросы чтения повторяются с экспоненциальной задержкой, отправка транзакции – никогда.
type Client struct {
	rpc    *rpc.Client
	rpcURL string
	wsURL  string
	logger *zap.Logger

	wsMu sync.Mutex
	ws   *ws.Client
}

// NewClient создаёт новый клиент, принимая RPC/WebSocket URL и логгер через dependency injection.
// WebSocket соединение открывается лениво при первой подписке.
func NewClient(rpcURL, wsURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		rpcURL: rpcURL,
		wsURL:  wsURL,
		logger: logger.Named("solbc-client"),
	}
}

func withRetry[T any](ctx context.Context, c *Client, method string, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = readInitialBackoff

	operation := func() (T, error) {
		out, err := op()
		err = solrpc.Classify(err)
		if err != nil && !solrpc.IsRetryableError(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying RPC read",
			zap.String("method", method),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(readMaxTries),
		backoff.WithNotify(notify))
	if err != nil {
		var zero T
		// Retry отдает ошибку контекста без обертки операции
		return zero, solrpc.NewError(solrpc.Classify(err), c.rpcURL, method)
	}
	return out, nil
}

// GetLatestBlockhash получает последний blockhash и высоту, до которой он действителен.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (blockchain.ValidityAnchor, error) {
	result, err := withRetry(ctx, c, "getLatestBlockhash", func() (*rpc.GetLatestBlockhashResult, error) {
		return c.rpc.GetLatestBlockhash(ctx, commitment)
	})
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return blockchain.ValidityAnchor{}, err
	}
	if result == nil || result.Value == nil {
		return blockchain.ValidityAnchor{}, solrpc.NewError(solrpc.ErrInvalidResponse, c.rpcURL, "getLatestBlockhash")
	}
	return blockchain.ValidityAnchor{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// GetBlockHeight получает текущую высоту блока.
func (c *Client) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	height, err := withRetry(ctx, c, "getBlockHeight", func() (uint64, error) {
		return c.rpc.GetBlockHeight(ctx, commitment)
	})
	if err != nil {
		c.logger.Warn("GetBlockHeight error", zap.Error(err))
		return 0, err
	}
	return height, nil
}

// SimulateTransaction симулирует транзакцию без проверки подписей; blockhash подменяется узлом.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := withRetry(ctx, c, "simulateTransaction", func() (*rpc.SimulateTransactionResponse, error) {
		return c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
			SigVerify:              false,
			ReplaceRecentBlockhash: true,
			Commitment:             rpc.CommitmentConfirmed,
		})
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, solrpc.NewError(solrpc.ErrInvalidResponse, c.rpcURL, "simulateTransaction")
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями. Один вызов, без повторов.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
		MaxRetries:          opts.MaxRetries,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, solrpc.NewError(solrpc.Classify(err), c.rpcURL, "sendTransaction")
	}
	return sig, nil
}

// GetSignatureStatuses запрашивает статусы подписей, включая историю леджера.
// Неизвестная узлу подпись возвращается как nil элемент.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]*blockchain.SignatureStatus, error) {
	result, err := withRetry(ctx, c, "getSignatureStatuses", func() (*rpc.GetSignatureStatusesResult, error) {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, signatures...)
		if errors.Is(err, rpc.ErrNotFound) {
			return &rpc.GetSignatureStatusesResult{}, nil
		}
		return out, err
	})
	if err != nil {
		c.logger.Warn("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}

	statuses := make([]*blockchain.SignatureStatus, len(signatures))
	for i, st := range result.Value {
		if i >= len(statuses) {
			break
		}
		if st == nil {
			continue
		}
		statuses[i] = &blockchain.SignatureStatus{
			Slot:               st.Slot,
			ConfirmationStatus: st.ConfirmationStatus,
			Err:                st.Err,
		}
	}
	return statuses, nil
}

// GetRecentPrioritizationFees возвращает недавние приоритетные комиссии для аккаунтов.
func (c *Client) GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]blockchain.PrioritizationFee, error) {
	addresses := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		addresses = append(addresses, acc.String())
	}

	fees, err := withRetry(ctx, c, "getRecentPrioritizationFees", func() ([]blockchain.PrioritizationFee, error) {
		var out []blockchain.PrioritizationFee
		err := c.rpc.RPCCallForInto(ctx, &out, "getRecentPrioritizationFees", []interface{}{addresses})
		return out, err
	})
	if err != nil {
		c.logger.Warn("GetRecentPrioritizationFees error", zap.Error(err))
		return nil, err
	}
	return fees, nil
}

// SubscribeSignature подписывается на статус подписи через WebSocket.
func (c *Client) SubscribeSignature(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (blockchain.SignatureSubscription, error) {
	wsClient, err := c.wsClient(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := wsClient.SignatureSubscribe(signature, commitment)
	if err != nil {
		c.logger.Error("SignatureSubscribe error",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, solrpc.NewError(err, c.wsURL, "signatureSubscribe")
	}
	return newSignatureSubscription(sub), nil
}

func (c *Client) wsClient(ctx context.Context) (*ws.Client, error) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws != nil {
		return c.ws, nil
	}
	if c.wsURL == "" {
		return nil, solrpc.NewError(fmt.Errorf("websocket URL is not configured: %w", solrpc.ErrConnectionFailed), "", "connect")
	}

	wsClient, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		c.logger.Error("WebSocket connect error", zap.String("url", c.wsURL), zap.Error(err))
		return nil, solrpc.NewError(fmt.Errorf("%w: %v", solrpc.ErrConnectionFailed, err), c.wsURL, "connect")
	}
	c.ws = wsClient
	return wsClient, nil
}

// Close закрывает WebSocket и RPC соединения.
func (c *Client) Close() error {
	c.wsMu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.wsMu.Unlock()
	return c.rpc.Close()
}

// signatureSubscription адаптирует ws-подписку к ожиданию с контекстом:
// Recv библиотеки не отменяется, поэтому читаем её каналы напрямую.
type signatureSubscription struct {
	sub       *ws.SignatureSubscription
	responses <-chan *ws.SignatureResult
	errs      <-chan error
}

func newSignatureSubscription(sub *ws.SignatureSubscription) *signatureSubscription {
	return &signatureSubscription{
		sub:       sub,
		responses: sub.Response(),
		errs:      sub.Err(),
	}
}

func (s *signatureSubscription) Recv(ctx context.Context) (*blockchain.SignatureNotification, error) {
	return recvSignature(ctx, s.responses, s.errs)
}

func recvSignature(ctx context.Context, responses <-chan *ws.SignatureResult, errs <-chan error) (*blockchain.SignatureNotification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errs:
		if err == nil {
			err = fmt.Errorf("signature subscription closed: %w", solrpc.ErrConnectionFailed)
		}
		return nil, err
	case res, ok := <-responses:
		if !ok || res == nil {
			return nil, fmt.Errorf("signature subscription closed: %w", solrpc.ErrConnectionFailed)
		}
		return &blockchain.SignatureNotification{
			Slot: res.Context.Slot,
			Err:  res.Value.Err,
		}, nil
	}
}

func (s *signatureSubscription) Unsubscribe() {
	s.sub.Unsubscribe()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
