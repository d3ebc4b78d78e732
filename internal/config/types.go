package config

import "time"

// Config is the process-wide configuration. It is loaded once at startup
// and never reloaded mid-run.
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Oracle    OracleConfig    `toml:"oracle"`
	Trading   TradingConfig   `toml:"trading"`
	Sentiment SentimentConfig `toml:"sentiment"`
	Chart     ChartConfig     `toml:"chart"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
	HTTPAddr string `toml:"http_addr"`
}

type MarketConfig struct {
	Symbol        string      `toml:"symbol"`
	Interval      string      `toml:"interval"`
	Lookback      int         `toml:"lookback"`
	OrderBookTop  int         `toml:"orderbook_top"`
	RESTBaseURL   string      `toml:"rest_base_url"`
	Retry         RetryConfig `toml:"retry"`
	BreakerTrips  int         `toml:"breaker_trips"`
	BreakerExpiry int         `toml:"breaker_expiry_seconds"`
}

// RetryConfig is the bounded-retry policy for one external collaborator.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

func (r RetryConfig) BaseDelay() time.Duration { return time.Duration(r.BaseDelayMS) * time.Millisecond }
func (r RetryConfig) MaxDelay() time.Duration  { return time.Duration(r.MaxDelayMS) * time.Millisecond }

type ExchangeConfig struct {
	APIKey         string  `toml:"api_key"`
	APISecret      string  `toml:"api_secret"`
	MinNotionalUSD float64 `toml:"min_notional_usd"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type OracleConfig struct {
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	SupportsVision bool   `toml:"supports_vision"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

type TradingConfig struct {
	// ConfidenceFloor downgrades decisions below this confidence to hold.
	ConfidenceFloor int `toml:"confidence_floor"`

	// DryRun simulates fills at the snapshot price instead of sending orders.
	DryRun bool `toml:"dry_run"`
}

// SentimentConfig controls the fear & greed index feed. The index enriches
// the decision prompt and tilts the committed ratio; when disabled or
// unreachable the cycle simply runs without it.
type SentimentConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ChartConfig struct {
	// Enabled selects whether a headless-browser chart capture is attached
	// to the oracle prompt. Requires a vision-capable model.
	Enabled bool `toml:"enabled"`
}

type ScheduleConfig struct {
	DecisionInterval      string `toml:"decision_interval"`
	DecisionOffsetSeconds int    `toml:"decision_offset_seconds"`
	ReflectionHourUTC     int    `toml:"reflection_hour_utc"`
	MaxConsecutiveFails   int    `toml:"max_consecutive_failures"`
	RunImmediately        bool   `toml:"run_immediately"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
