package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	FallbackStatic = "static"
	FallbackAbort  = "abort"
)

type Config struct {
	LogDir          string `yaml:"log_dir"`
	LockFile        string `yaml:"lock_file"`
	DynamicFallback string `yaml:"dynamic_fallback"`

	Page struct {
		URL              string `yaml:"url"`
		RemoteURL        string `yaml:"remote_url"`
		UserDataDir      string `yaml:"user_data_dir"`
		Headless         bool   `yaml:"headless"`
		ActionIntervalMs int    `yaml:"action_interval_ms"`
	} `yaml:"page"`

	Trading TradingConfig `yaml:"trading"`

	Selectors Selectors `yaml:"selectors"`

	Stats struct {
		EveryRounds      int     `yaml:"every_rounds"`
		RefreshSeconds   int     `yaml:"refresh_seconds"`
		MaxPages         int     `yaml:"max_pages"`
		PointsMultiplier float64 `yaml:"points_multiplier"`
	} `yaml:"stats"`

	API struct {
		Addr              string `yaml:"addr"`
		StatusPushSeconds int    `yaml:"status_push_seconds"`
	} `yaml:"api"`

	Trace struct {
		ServiceName string `yaml:"service_name"`
	} `yaml:"trace"`

	Notify struct {
		TelegramTokenEnv string `yaml:"telegram_token_env"`
		TelegramChatID   int64  `yaml:"telegram_chat_id"`
	} `yaml:"notify"`
}

// TradingConfig is the file form of the trading parameters. It is converted
// to Trading once at startup; after that the Settings object owns them.
type TradingConfig struct {
	BuyPrice            float64 `yaml:"buy_price"`
	SellPrice           float64 `yaml:"sell_price"`
	DynamicPricing      bool    `yaml:"dynamic_pricing"`
	PriceOffset         float64 `yaml:"price_offset"`
	OrderVolume         float64 `yaml:"order_volume"`
	MaxRounds           int     `yaml:"max_rounds"`
	OrderTimeoutMs      int     `yaml:"order_timeout_ms"`
	AbortOnPriceWarning bool    `yaml:"abort_on_price_warning"`
	MinVolumeM          float64 `yaml:"min_volume_m"`
}

func (c *Config) Validate() error {
	if c.Page.URL == "" && c.Page.RemoteURL == "" {
		return errors.New("page.url or page.remote_url must be set")
	}
	if c.DynamicFallback != FallbackStatic && c.DynamicFallback != FallbackAbort {
		return fmt.Errorf("invalid dynamic_fallback '%s': must be '%s' or '%s'", c.DynamicFallback, FallbackStatic, FallbackAbort)
	}
	if _, err := c.Trading.Trading().validated(); err != nil {
		return fmt.Errorf("trading: %w", err)
	}
	return c.ValidateReport()
}

// ValidateReport checks only what reading saved history needs: selectors
// and stats settings. Page and trading settings are ignored.
func (c *Config) ValidateReport() error {
	if c.Stats.MaxPages < 1 {
		return fmt.Errorf("stats.max_pages must be at least 1, got %d", c.Stats.MaxPages)
	}
	if c.Stats.EveryRounds < 0 {
		return fmt.Errorf("stats.every_rounds must not be negative, got %d", c.Stats.EveryRounds)
	}
	if c.Stats.PointsMultiplier <= 0 {
		return fmt.Errorf("stats.points_multiplier must be positive, got %.2f", c.Stats.PointsMultiplier)
	}
	if err := c.Selectors.Validate(); err != nil {
		return fmt.Errorf("selectors: %w", err)
	}
	return nil
}

// Defaults returns a config with every optional field populated.
func Defaults() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.LockFile == "" {
		c.LockFile = "alpha-volume-bot.lock"
	}
	if c.DynamicFallback == "" {
		c.DynamicFallback = FallbackStatic
	}
	if c.Page.ActionIntervalMs == 0 {
		c.Page.ActionIntervalMs = 100
	}
	if c.Trading.OrderVolume == 0 {
		c.Trading.OrderVolume = 10
	}
	if c.Trading.MaxRounds == 0 {
		c.Trading.MaxRounds = 13
	}
	if c.Trading.OrderTimeoutMs == 0 {
		c.Trading.OrderTimeoutMs = 300000
	}
	if c.Stats.EveryRounds == 0 {
		c.Stats.EveryRounds = 3
	}
	if c.Stats.MaxPages == 0 {
		c.Stats.MaxPages = 50
	}
	if c.Stats.PointsMultiplier == 0 {
		c.Stats.PointsMultiplier = 4
	}
	if c.API.Addr == "" {
		c.API.Addr = "127.0.0.1:8089"
	}
	if c.API.StatusPushSeconds == 0 {
		c.API.StatusPushSeconds = 2
	}
	if c.Trace.ServiceName == "" {
		c.Trace.ServiceName = "alpha-volume-bot"
	}
	if c.Notify.TelegramTokenEnv == "" {
		c.Notify.TelegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	}
	c.Selectors.applyDefaults()
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	return parseConfig(b, (*Config).Validate)
}

// LoadReportConfig loads a config for offline history reports.
func LoadReportConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReportConfig(b)
}

func ParseReportConfig(b []byte) (*Config, error) {
	return parseConfig(b, (*Config).ValidateReport)
}

func parseConfig(b []byte, validate func(*Config) error) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	c.applyDefaults()

	if err := validate(&c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
