// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type PriorityFeeConfig struct {
	Mode          string `mapstructure:"mode"`
	MicroLamports uint64 `mapstructure:"micro_lamports"`
	Percentile    int    `mapstructure:"percentile"`
}

type Config struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	WebSocketURL   string            `mapstructure:"websocket_url"`
	KeypairPath    string            `mapstructure:"keypair_path"`
	Destination    string            `mapstructure:"destination"`
	AmountLamports uint64            `mapstructure:"amount_lamports"`
	PriorityFee    PriorityFeeConfig `mapstructure:"priority_fee"`
	Commitment     string            `mapstructure:"commitment"`
	SkipPreflight  bool              `mapstructure:"skip_preflight"`
	MaxRetries     uint              `mapstructure:"max_retries"`
	ConfirmTimeout time.Duration     `mapstructure:"confirm_timeout"`
	DebugLogging   bool              `mapstructure:"debug_logging"`
	LogFile        string            `mapstructure:"log_file"`
	MetricsAddr    string            `mapstructure:"metrics_addr"`
	NATSURL        string            `mapstructure:"nats_url"`
	NATSSubject    string            `mapstructure:"nats_subject"`
	HistoryFile    string            `mapstructure:"history_file"`
}

const (
	EnvPrefix = "SOLANA_TRANSFER"

	DefaultRPCURL          = "https://api.devnet.solana.com"
	DefaultWebSocketURL    = "wss://api.devnet.solana.com"
	DefaultKeypairPath     = "authority.json"
	DefaultCommitment      = "confirmed"
	DefaultPriorityFeeMode = "static"
	DefaultPriorityFee     = 100_000
	DefaultFeePercentile   = 75
	DefaultConfirmTimeout  = 90 * time.Second
	DefaultLogFile         = "transfer.log"
	DefaultNATSSubject     = "solana.transfer.outcome"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rpc_url":                     DefaultRPCURL,
		"websocket_url":               DefaultWebSocketURL,
		"keypair_path":                DefaultKeypairPath,
		"destination":                 "",
		"amount_lamports":             0,
		"priority_fee.mode":           DefaultPriorityFeeMode,
		"priority_fee.micro_lamports": DefaultPriorityFee,
		"priority_fee.percentile":     DefaultFeePercentile,
		"commitment":                  DefaultCommitment,
		"skip_preflight":              false,
		"max_retries":                 0,
		"confirm_timeout":             DefaultConfirmTimeout,
		"debug_logging":               false,
		"log_file":                    DefaultLogFile,
		"metrics_addr":                "",
		"nats_url":                    "",
		"nats_subject":                DefaultNATSSubject,
		"history_file":                "",
	}
}

// LoadConfig читает конфигурацию из файла (JSON/YAML); пустой path – только
// значения по умолчанию и переменные окружения SOLANA_TRANSFER_*.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate проверяет конфигурацию перед запуском перевода.
func (cfg *Config) Validate() error {
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
		return fmt.Errorf("invalid websocket_url: %w", err)
	}
	if cfg.KeypairPath == "" {
		return errors.New("keypair_path is required")
	}
	if cfg.Destination == "" {
		return errors.New("destination is required")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Destination); err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if cfg.AmountLamports == 0 {
		return errors.New("amount_lamports must be positive")
	}
	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if err := validatePriorityFee(cfg.PriorityFee); err != nil {
		return err
	}
	if cfg.ConfirmTimeout < 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.NATSURL != "" {
		if err := validateURLWithCache(cfg.NATSURL, "nats"); err != nil {
			return fmt.Errorf("invalid nats_url: %w", err)
		}
		if cfg.NATSSubject == "" {
			return errors.New("nats_subject is required when nats_url is set")
		}
	}
	return nil
}

func validatePriorityFee(pf PriorityFeeConfig) error {
	switch pf.Mode {
	case "static", "recent":
	default:
		return fmt.Errorf("invalid priority_fee.mode %q", pf.Mode)
	}
	if pf.Percentile < 1 || pf.Percentile > 100 {
		return errors.New("priority_fee.percentile must be between 1 and 100")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	cacheKey := protocol + "|" + rawURL
	if _, ok := urlCache.Load(cacheKey); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(cacheKey, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
