// internal/notify/publisher.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher публикует итоги переводов.
type Publisher interface {
	PublishOutcome(ctx context.Context, event *OutcomeEvent) error
	Close() error
}

// NATSPublisher публикует события в core NATS.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

const flushTimeout = 5 * time.Second

// NewNATSPublisher подключается к NATS.
func NewNATSPublisher(natsURL, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solana-transfer"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger = logger.Named("nats-publisher")
	logger.Info("NATS publisher initialized",
		zap.String("url", natsURL),
		zap.String("subject", subject))

	return &NATSPublisher{
		nc:      nc,
		subject: subject,
		logger:  logger,
	}, nil
}

// PublishOutcome отправляет событие и ждет подтверждения доставки до сервера.
func (p *NATSPublisher) PublishOutcome(ctx context.Context, event *OutcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish outcome event: %w", err)
	}

	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 && d < timeout {
			timeout = d
		}
	}
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush outcome event: %w", err)
	}

	p.logger.Debug("Outcome event published",
		zap.String("subject", p.subject),
		zap.String("result", event.Result),
		zap.String("signature", event.Signature))
	return nil
}

// Close закрывает соединение, дождавшись отправки буфера.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}

var _ Publisher = (*NATSPublisher)(nil)
