package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"arbflow/processor"
)

type Config struct {
	Arbflow    ArbflowConfig             `yaml:"arbflow"`
	Metrics    MetricsConfig             `yaml:"metrics"`
	Channels   ChannelsConfig            `yaml:"channels"`
	Pairs      []string                  `yaml:"pairs"`
	Exchanges  map[string]ExchangeConfig `yaml:"exchanges"`
	Aggregator AggregatorConfig          `yaml:"aggregator"`
	Evaluator  EvaluatorConfig           `yaml:"evaluator"`
	Scanner    ScannerConfig             `yaml:"scanner"`
	Server     ServerConfig              `yaml:"server"`
	Notify     NotifyConfig              `yaml:"notify"`
	Storage    StorageConfig             `yaml:"storage"`
	Logging    LoggingConfig             `yaml:"logging"`
}

type ArbflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	CloudWatch    bool   `yaml:"cloudwatch"`
	Namespace     string `yaml:"namespace"`
	Region        string `yaml:"region"`
	DashboardName string `yaml:"dashboard_name"`
}

type ChannelsConfig struct {
	OpportunityBuffer int `yaml:"opportunity_buffer"`
	FailureBuffer     int `yaml:"failure_buffer"`
}

// ExchangeConfig carries one venue's connectivity and fee schedule. API
// credentials are optional for market data; venues without them can still be
// polled but are excluded when the scanner runs in credentialed mode.
type ExchangeConfig struct {
	Enabled           bool            `yaml:"enabled"`
	BaseURL           string          `yaml:"base_url"`
	APIKey            string          `yaml:"api_key"`
	APISecret         string          `yaml:"api_secret"`
	Passphrase        string          `yaml:"passphrase"`
	MakerFee          decimal.Decimal `yaml:"maker_fee"`
	TakerFee          decimal.Decimal `yaml:"taker_fee"`
	WithdrawalFeeUsdt decimal.Decimal `yaml:"withdrawal_fee_usdt"`
	Networks          []string        `yaml:"networks"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// HasCredentials reports whether the venue can be used for credentialed
// operations such as wallet status checks.
func (e ExchangeConfig) HasCredentials() bool {
	return e.APIKey != "" && e.APISecret != ""
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type AggregatorConfig struct {
	MaxWorkers     int           `yaml:"max_workers"`
	Timeout        time.Duration `yaml:"timeout"`
	Depth          int           `yaml:"depth"`
	MarketCacheTTL time.Duration `yaml:"market_cache_ttl"`
}

type EvaluatorConfig struct {
	TradeAmountQuote    decimal.Decimal      `yaml:"trade_amount_quote"`
	MinProfitPercentage decimal.Decimal      `yaml:"min_profit_percentage"`
	RiskPercentage      decimal.Decimal      `yaml:"risk_percentage"`
	RiskRewardRatio     decimal.Decimal      `yaml:"risk_reward_ratio"`
	Risk                processor.RiskConfig `yaml:"risk"`
}

type ScannerConfig struct {
	RefreshRate        time.Duration `yaml:"refresh_rate"`
	RequireCredentials bool          `yaml:"require_credentials"`
	FallbackExchanges  []string      `yaml:"fallback_exchanges"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Channels: ChannelsConfig{
			OpportunityBuffer: 64,
			FailureBuffer:     64,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment environments inject secrets without
// writing them into the YAML file. Exchange credentials follow the
// <EXCHANGE>_API_KEY naming used by the upstream SDKs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Postgres.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Storage.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.Token = strings.TrimSpace(v)
	}

	for name, ex := range cfg.Exchanges {
		prefix := strings.ToUpper(name)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			ex.APIKey = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_API_SECRET"); v != "" {
			ex.APISecret = strings.TrimSpace(v)
		}
		if v := os.Getenv(prefix + "_PASSPHRASE"); v != "" {
			ex.Passphrase = strings.TrimSpace(v)
		}
		cfg.Exchanges[name] = ex
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Arbflow.Name == "" {
		return fmt.Errorf("arbflow.name is required")
	}

	if cfg.Arbflow.Version == "" {
		return fmt.Errorf("arbflow.version is required")
	}

	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}

	enabled := 0
	for name, ex := range cfg.Exchanges {
		if !ex.Enabled {
			continue
		}
		enabled++
		if ex.RateLimit.RequestsPerSecond < 0 {
			return fmt.Errorf("exchanges.%s.rate_limit.requests_per_second must not be negative", name)
		}
	}
	if enabled < 2 {
		return fmt.Errorf("at least two enabled exchanges are required for cross-venue evaluation")
	}

	if cfg.Channels.OpportunityBuffer <= 0 {
		return fmt.Errorf("channels.opportunity_buffer must be greater than 0")
	}
	if cfg.Channels.FailureBuffer <= 0 {
		return fmt.Errorf("channels.failure_buffer must be greater than 0")
	}

	if cfg.Aggregator.MaxWorkers <= 0 {
		return fmt.Errorf("aggregator.max_workers must be greater than 0")
	}
	if cfg.Aggregator.Timeout <= 0 {
		return fmt.Errorf("aggregator.timeout must be greater than 0")
	}

	if cfg.Evaluator.TradeAmountQuote.Sign() <= 0 {
		return fmt.Errorf("evaluator.trade_amount_quote must be greater than 0")
	}
	if cfg.Evaluator.MinProfitPercentage.Sign() < 0 {
		return fmt.Errorf("evaluator.min_profit_percentage must not be negative")
	}

	if cfg.Scanner.RefreshRate <= 0 {
		return fmt.Errorf("scanner.refresh_rate must be greater than 0")
	}

	if cfg.Storage.Postgres.Enabled && cfg.Storage.Postgres.URL == "" {
		return fmt.Errorf("storage.postgres.url is required when postgres is enabled")
	}
	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when kafka is enabled")
		}
	}
	if cfg.Storage.Redis.Enabled && cfg.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required when redis is enabled")
	}

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token == "" {
		return fmt.Errorf("notify.telegram.token is required when telegram is enabled")
	}

	return nil
}

// Intent builds the trade intent the evaluator consumes from the configured
// defaults. Runtime settings loaded from the settings store override these.
func (c *Config) Intent() (tradeAmount, minProfit, riskPct, riskReward decimal.Decimal) {
	return c.Evaluator.TradeAmountQuote, c.Evaluator.MinProfitPercentage, c.Evaluator.RiskPercentage, c.Evaluator.RiskRewardRatio
}

// EnabledExchanges returns the names of venues eligible for polling, sorted
// lexicographically for deterministic cycle ordering.
func (c *Config) EnabledExchanges() []string {
	var names []string
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
