package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/itchyny/gojq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-transfer/internal/config"
	"github.com/rovshanmuradov/solana-transfer/internal/export"
	"github.com/rovshanmuradov/solana-transfer/internal/notify"
	"github.com/rovshanmuradov/solana-transfer/internal/utils/logger"
	"github.com/rovshanmuradov/solana-transfer/internal/wallet"
)

const (
	// exit code for a transaction rejected by preflight simulation
	exitDiagnosed  = 2
	publishTimeout = 5 * time.Second
)

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Transfer lamports from the configured keypair",
		Description: `Runs the full pipeline: build, estimate compute units, attach the
priority fee, sign, submit and wait for the configured commitment.

Examples:
  transfer send --destination 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM --amount 1000000
  transfer --config config.yaml send --json
  transfer send --jq '.diagnosis.message // .signature'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "destination",
				Aliases: []string{"to"},
				Usage:   "Recipient public key (base58)",
			},
			&cli.Uint64Flag{
				Name:  "amount",
				Usage: "Amount to transfer in lamports",
			},
			&cli.StringFlag{
				Name:  "keypair",
				Usage: "Path to the fee payer keypair (keygen JSON or base58)",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "Commitment level to wait for (processed, confirmed, finalized)",
			},
			&cli.BoolFlag{
				Name:  "skip-preflight",
				Usage: "Send without preflight simulation",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the outcome as JSON",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON outcome (implies --json)",
			},
		},
		Action: runSend,
	}
}

func runSend(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	jqCode, err := compileJQ(c.String("jq"))
	if err != nil {
		return err
	}
	jsonOutput := c.Bool("json") || jqCode != nil

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
		Stderr:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	w, err := wallet.LoadWallet(cfg.KeypairPath)
	if err != nil {
		return err
	}
	destination, err := solana.PublicKeyFromBase58(cfg.Destination)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := transaction.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, registry, log.Logger)
		defer shutdown()
	}

	// все компоненты одного перевода пишут общий correlation_id
	opLog := log.WithOperation("transfer")

	client := solbc.NewClient(cfg.RPCURL, cfg.WebSocketURL, opLog)
	defer func() {
		if err := client.Close(); err != nil {
			log.Debug("Failed to close websocket client", zap.Error(err))
		}
	}()

	priority, err := transaction.NewPriorityFeeSource(cfg.PriorityFee.Mode, client, opLog,
		cfg.PriorityFee.MicroLamports, cfg.PriorityFee.Percentile)
	if err != nil {
		return err
	}

	maxRetries := cfg.MaxRetries
	manager := transaction.NewManager(client, opLog, transaction.Config{
		Commitment:    rpc.CommitmentType(cfg.Commitment),
		SkipPreflight: cfg.SkipPreflight,
		MaxRetries:    &maxRetries,
	}, priority, metrics)

	opLog.Info("Starting transfer",
		zap.String("from", w.PublicKey.String()),
		zap.String("to", destination.String()),
		zap.Uint64("lamports", cfg.AmountLamports),
		zap.String("commitment", cfg.Commitment))

	runCtx := ctx
	if cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.ConfirmTimeout)
		defer cancel()
	}
	endTransfer := log.TrackPerformance("transfer")
	outcome, txErr := manager.Transfer(runCtx, w.PrivateKey, destination, cfg.AmountLamports)
	endTransfer()
	if txErr != nil {
		log.LogError("Transfer failed", txErr)
	}

	event := notify.NewOutcomeEvent(w.PublicKey.String(), destination.String(), cfg.AmountLamports, outcome, txErr)
	logOutcome(log, event)
	if cfg.NATSURL != "" {
		publisher, err := notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, log.Logger)
		if err != nil {
			log.Warn("Outcome event not published", zap.Error(err))
		} else {
			publishOutcome(publisher, event, log.Logger)
		}
	}
	if cfg.HistoryFile != "" {
		if err := export.NewJournal(cfg.HistoryFile, log.Logger).Append(event); err != nil {
			log.Warn("Outcome not written to history", zap.Error(err))
		}
	}

	if jsonOutput {
		if err := renderJSON(os.Stdout, event, jqCode); err != nil {
			return err
		}
	} else {
		printOutcome(os.Stdout, event)
	}

	if txErr != nil {
		return fmt.Errorf("transfer failed: %w", txErr)
	}
	if event.Result == notify.ResultDiagnosed {
		return cli.Exit("", exitDiagnosed)
	}
	return nil
}

// applyFlags переопределяет значения конфигурации флагами команды.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("destination") {
		cfg.Destination = c.String("destination")
	}
	if c.IsSet("amount") {
		cfg.AmountLamports = c.Uint64("amount")
	}
	if c.IsSet("keypair") {
		cfg.KeypairPath = c.String("keypair")
	}
	if c.IsSet("commitment") {
		cfg.Commitment = c.String("commitment")
	}
	if c.IsSet("skip-preflight") {
		cfg.SkipPreflight = c.Bool("skip-preflight")
	}
}

// logOutcome пишет итог с подписью транзакции.
func logOutcome(log *logger.Logger, event *notify.OutcomeEvent) {
	if event.Signature == "" {
		return
	}
	log.WithTransaction(event.Signature).Info("Transfer outcome",
		zap.String("result", event.Result),
		zap.Uint64("slot", event.Slot),
		zap.String("error_kind", event.ErrorKind))
}

// publishOutcome uses its own deadline: the transfer context may already be done.
func publishOutcome(publisher notify.Publisher, event *notify.OutcomeEvent, log *zap.Logger) {
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Debug("Failed to close publisher", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.PublishOutcome(ctx, event); err != nil {
		log.Warn("Outcome event not published", zap.Error(err))
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, log *zap.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting metrics HTTP server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown metrics server", zap.Error(err))
		}
	}
}

func compileJQ(filter string) (*gojq.Code, error) {
	if filter == "" {
		return nil, nil
	}
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// renderJSON печатает событие как JSON; с фильтром печатается каждый результат jq.
func renderJSON(out io.Writer, event *notify.OutcomeEvent, code *gojq.Code) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if code == nil {
		return enc.Encode(event)
	}

	// gojq работает только с map/slice/примитивами
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to decode outcome: %w", err)
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("jq filter failed: %w", err)
		}
		if s, ok := v.(string); ok {
			fmt.Fprintln(out, s)
			continue
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}

func printOutcome(out io.Writer, event *notify.OutcomeEvent) {
	switch event.Result {
	case notify.ResultConfirmed:
		fmt.Fprintf(out, "Transfer confirmed (%s)\n", event.Commitment)
		fmt.Fprintf(out, "  Signature:     %s\n", event.Signature)
		fmt.Fprintf(out, "  Slot:          %d\n", event.Slot)
		fmt.Fprintf(out, "  Amount:        %d lamports\n", event.AmountLamports)
		fmt.Fprintf(out, "  Compute units: %d\n", event.ComputeUnits)
		fmt.Fprintf(out, "  Priority fee:  %d micro-lamports/CU\n", event.PriorityFee)
	case notify.ResultDiagnosed:
		fmt.Fprintf(out, "Transaction rejected by preflight simulation\n")
		fmt.Fprintf(out, "  Signature: %s\n", event.Signature)
		if event.Diagnosis != nil {
			fmt.Fprintf(out, "  Reason:    %s\n", event.Diagnosis.Message)
			if event.Diagnosis.Detail != "" {
				fmt.Fprintf(out, "  Detail:    %s\n", event.Diagnosis.Detail)
			}
			for _, line := range event.Diagnosis.Logs {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	default:
		fmt.Fprintf(out, "Transfer failed [%s]: %s\n", event.ErrorKind, event.Error)
	}
}
