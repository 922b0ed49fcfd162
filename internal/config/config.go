package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	State     StateConfig     `yaml:"state"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Filters   FilterConfig    `yaml:"filters"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Stop      StopConfig      `yaml:"stop"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// CycleConfig drives the open/close loop. Loaded once, never mutated.
type CycleConfig struct {
	Market                 string        `yaml:"market"`
	OrderSize              float64       `yaml:"order_size"`
	SpreadThresholdPercent float64       `yaml:"spread_threshold_percent"`
	MaxCycles              int           `yaml:"max_cycles"`
	Interval               time.Duration `yaml:"interval"`
	Direction              string        `yaml:"direction"`
	QuoteTimeout           time.Duration `yaml:"quote_timeout"`
	OrderTimeout           time.Duration `yaml:"order_timeout"`
}

type FilterConfig struct {
	MaxQuoteAge          time.Duration `yaml:"max_quote_age"`
	MinDepth             float64       `yaml:"min_depth"`
	MaxVolatilityPercent float64       `yaml:"max_volatility_percent"`
	VolatilityWindow     time.Duration `yaml:"volatility_window"`
	VolatilityEnabled    *bool         `yaml:"volatility_enabled"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

type StopConfig struct {
	SentinelPath string `yaml:"sentinel_path"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

type RecorderConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

const (
	DirectionFixed = "fixed"
	DirectionDepth = "depth"
)

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

func (f FilterConfig) VolatilityEnabledValue() bool {
	return f.VolatilityEnabled == nil || *f.VolatilityEnabled
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.prod.paradex.trade/v1"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = deriveWSURL(cfg.REST.BaseURL)
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/pdx-scalper.db"
	}
	if cfg.Cycle.Market == "" {
		cfg.Cycle.Market = "BTC-USD-PERP"
	}
	if cfg.Cycle.Interval == 0 {
		cfg.Cycle.Interval = time.Second
	}
	if cfg.Cycle.Direction == "" {
		cfg.Cycle.Direction = DirectionFixed
	}
	if cfg.Cycle.QuoteTimeout == 0 {
		cfg.Cycle.QuoteTimeout = 5 * time.Second
	}
	if cfg.Cycle.OrderTimeout == 0 {
		cfg.Cycle.OrderTimeout = 10 * time.Second
	}
	if cfg.Filters.MaxQuoteAge == 0 {
		cfg.Filters.MaxQuoteAge = 100 * time.Millisecond
	}
	if cfg.Filters.MinDepth == 0 {
		cfg.Filters.MinDepth = 0.02
	}
	if cfg.Filters.MaxVolatilityPercent == 0 {
		cfg.Filters.MaxVolatilityPercent = 0.05
	}
	if cfg.Filters.VolatilityWindow == 0 {
		cfg.Filters.VolatilityWindow = 10 * time.Second
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 26
	}
	if cfg.RateLimit.PerHour == 0 {
		cfg.RateLimit.PerHour = 500
	}
	if cfg.RateLimit.PerDay == 0 {
		cfg.RateLimit.PerDay = 2000
	}
	if cfg.Stop.SentinelPath == "" {
		cfg.Stop.SentinelPath = "STOP"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := false
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
	if cfg.Recorder.Schema == "" {
		cfg.Recorder.Schema = "public"
	}
	if cfg.Recorder.QueueSize == 0 {
		cfg.Recorder.QueueSize = 256
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("PDX_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("PDX_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if dsn := strings.TrimSpace(os.Getenv("PDX_RECORDER_DSN")); dsn != "" {
		cfg.Recorder.DSN = dsn
	}
}

func validate(cfg *Config) error {
	if cfg.Cycle.Market == "" {
		return errors.New("cycle.market is required")
	}
	if cfg.Cycle.OrderSize <= 0 {
		return errors.New("cycle.order_size must be > 0")
	}
	if cfg.Cycle.SpreadThresholdPercent < 0 {
		return errors.New("cycle.spread_threshold_percent must be >= 0")
	}
	if cfg.Cycle.MaxCycles < 0 {
		return errors.New("cycle.max_cycles must be >= 0")
	}
	if cfg.Cycle.Interval < 0 {
		return errors.New("cycle.interval must be >= 0")
	}
	if cfg.Cycle.Direction != DirectionFixed && cfg.Cycle.Direction != DirectionDepth {
		return errors.New("cycle.direction must be fixed or depth")
	}
	if cfg.Cycle.QuoteTimeout <= 0 {
		return errors.New("cycle.quote_timeout must be > 0")
	}
	if cfg.Cycle.OrderTimeout <= 0 {
		return errors.New("cycle.order_timeout must be > 0")
	}
	if cfg.Filters.MinDepth < 0 {
		return errors.New("filters.min_depth must be >= 0")
	}
	if cfg.Filters.MaxVolatilityPercent < 0 {
		return errors.New("filters.max_volatility_percent must be >= 0")
	}
	if cfg.RateLimit.PerMinute < 0 || cfg.RateLimit.PerHour < 0 || cfg.RateLimit.PerDay < 0 {
		return errors.New("rate_limit windows must be >= 0")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if cfg.Recorder.Enabled && strings.TrimSpace(cfg.Recorder.DSN) == "" {
		return errors.New("recorder.dsn is required when recorder is enabled")
	}
	return nil
}

func deriveWSURL(baseURL string) string {
	url := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	url = strings.TrimSuffix(url, "/v1")
	return url + "/v1/ws"
}
