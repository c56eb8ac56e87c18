// Package config provides configuration management for growwbot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Broker      BrokerConfig     `mapstructure:"broker"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Backtest    BacktestConfig   `mapstructure:"backtest"`
	DailyPicks  DailyPicksConfig `mapstructure:"daily_picks"`
	Fees        fees.Schedule    `mapstructure:"fees"`
	Strategies  StrategiesConfig `mapstructure:"strategies"`
	Monitor     MonitorConfig    `mapstructure:"monitor"`
	Server      ServerConfig     `mapstructure:"server"`
	Notify      NotifyConfig     `mapstructure:"notify"`
	Credentials Credentials      `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// BrokerConfig selects and tunes the market-data source.
type BrokerConfig struct {
	Provider          string  `mapstructure:"provider"` // "kite", "replay"
	ReplayDir         string  `mapstructure:"replay_dir"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	// BreakerTripAfter consecutive broker failures stop calls for BreakerCooldown.
	BreakerTripAfter int           `mapstructure:"breaker_trip_after"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
	Path  string `mapstructure:"path"`
}

// BacktestConfig holds defaults for single-symbol runs.
type BacktestConfig struct {
	Exchange       string   `mapstructure:"exchange"`
	Segment        string   `mapstructure:"segment"`
	Interval       string   `mapstructure:"interval"`
	InitialCapital float64  `mapstructure:"initial_capital"`
	RiskPercent    float64  `mapstructure:"risk_percent"`
	MaxPositions   int      `mapstructure:"max_positions"`
	TiePolicy      string   `mapstructure:"tie_policy"` // "proximity", "conservative"
	Holidays       []string `mapstructure:"holidays"`
}

// DailyPicksConfig holds defaults for the daily-picks portfolio engine.
type DailyPicksConfig struct {
	MaxPositionsPerDay      int      `mapstructure:"max_positions_per_day"`
	MaxTradeDurationMinutes int      `mapstructure:"max_trade_duration_minutes"`
	Workers                 int      `mapstructure:"workers"`
	UseCachedSnapshots      bool     `mapstructure:"use_cached_snapshots"`
	Source                  string   `mapstructure:"source"` // "screener", "file"
	PicksFile               string   `mapstructure:"picks_file"`
	Universe                []string `mapstructure:"universe"`
	FnoSymbols              []string `mapstructure:"fno_symbols"`
}

// StrategiesConfig holds thresholds of the built-in strategies.
type StrategiesConfig struct {
	MomentumScalp strategy.MomentumParams      `mapstructure:"momentum_scalp"`
	MeanReversion strategy.MeanReversionParams `mapstructure:"mean_reversion"`
}

// MonitorConfig holds live position monitor settings.
type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	PaperMode   bool          `mapstructure:"paper_mode"`

	// MarketHoursOnly idles the monitor while the NSE cash session is closed.
	MarketHoursOnly bool `mapstructure:"market_hours_only"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// NotifyConfig selects where monitor exits and failures are announced.
type NotifyConfig struct {
	Level          string `mapstructure:"level"` // "all", "trades_only", "errors_only"
	WebhookURL     string `mapstructure:"webhook_url"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite     KiteCredentials     `mapstructure:"kite"`
	Telegram TelegramCredentials `mapstructure:"telegram"`
}

// TelegramCredentials holds the bot token used for notifications.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/growwbot"
	}
	return filepath.Join(home, ".config", "growwbot")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// created from templates and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env in the config dir, then the working directory. Existing env wins.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "growwbot.db")
	}
	if cfg.Logging.Path == "" {
		cfg.Logging.Path = filepath.Join(configDir, "logs", "growwbot.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated only from built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.provider", "kite")
	v.SetDefault("broker.replay_dir", "")
	v.SetDefault("broker.requests_per_second", 3.0)
	v.SetDefault("broker.breaker_trip_after", 5)
	v.SetDefault("broker.breaker_cooldown", "30s")

	v.SetDefault("database.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.path", "")

	v.SetDefault("backtest.exchange", "NSE")
	v.SetDefault("backtest.segment", "CASH")
	v.SetDefault("backtest.interval", "5minute")
	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.risk_percent", 1.0)
	v.SetDefault("backtest.max_positions", 1)
	v.SetDefault("backtest.tie_policy", "proximity")
	v.SetDefault("backtest.holidays", []string{})

	v.SetDefault("daily_picks.max_positions_per_day", 3)
	v.SetDefault("daily_picks.max_trade_duration_minutes", 15)
	v.SetDefault("daily_picks.workers", 3)
	v.SetDefault("daily_picks.use_cached_snapshots", true)
	v.SetDefault("daily_picks.source", "screener")
	v.SetDefault("daily_picks.picks_file", "")
	v.SetDefault("daily_picks.universe", []string{})
	v.SetDefault("daily_picks.fno_symbols", []string{})

	d := fees.DefaultSchedule()
	v.SetDefault("fees.brokerage_flat", d.BrokerageFlat)
	v.SetDefault("fees.brokerage_pct", d.BrokeragePct)
	v.SetDefault("fees.stt_intraday_sell", d.STTIntradaySell)
	v.SetDefault("fees.stt_delivery", d.STTDelivery)
	v.SetDefault("fees.exchange_txn", d.ExchangeTxn)
	v.SetDefault("fees.sebi", d.SEBI)
	v.SetDefault("fees.stamp_duty_buy", d.StampDutyBuy)
	v.SetDefault("fees.gst", d.GST)

	mom := strategy.DefaultMomentumParams()
	v.SetDefault("strategies.momentum_scalp.ema_fast", mom.EMAFast)
	v.SetDefault("strategies.momentum_scalp.ema_slow", mom.EMASlow)
	v.SetDefault("strategies.momentum_scalp.rsi_min", mom.RSIMin)
	v.SetDefault("strategies.momentum_scalp.rsi_max", mom.RSIMax)
	v.SetDefault("strategies.momentum_scalp.volume_threshold", mom.VolumeThreshold)
	v.SetDefault("strategies.momentum_scalp.atr_target_mult", mom.ATRTargetMult)
	v.SetDefault("strategies.momentum_scalp.atr_sl_mult", mom.ATRSLMult)
	v.SetDefault("strategies.momentum_scalp.fee_safety_margin", mom.FeeSafetyMargin)

	mr := strategy.DefaultMeanReversionParams()
	v.SetDefault("strategies.mean_reversion.vwap_distance_atr_min", mr.VWAPDistanceATRMin)
	v.SetDefault("strategies.mean_reversion.rsi_max", mr.RSIMax)
	v.SetDefault("strategies.mean_reversion.volume_threshold", mr.VolumeThreshold)
	v.SetDefault("strategies.mean_reversion.atr_sl_mult", mr.ATRSLMult)
	v.SetDefault("strategies.mean_reversion.fee_safety_margin", mr.FeeSafetyMargin)

	v.SetDefault("monitor.interval", "5s")
	v.SetDefault("monitor.batch_size", 50)
	v.SetDefault("monitor.base_backoff", "5s")
	v.SetDefault("monitor.max_backoff", "60s")
	v.SetDefault("monitor.paper_mode", true)
	v.SetDefault("monitor.market_hours_only", true)

	v.SetDefault("server.addr", ":8000")

	v.SetDefault("notify.level", "all")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.telegram_chat_id", "")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and fall back to defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	// Kite credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Credentials.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
	if v := os.Getenv("GROWWBOT_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}

	if v := firstEnv("GROWWBOT_DATABASE_PATH", "DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := firstEnv("GROWWBOT_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GROWWBOT_BROKER"); v != "" {
		cfg.Broker.Provider = v
	}
	if v := os.Getenv("GROWWBOT_REPLAY_DIR"); v != "" {
		cfg.Broker.ReplayDir = v
	}
	if v := firstEnv("GROWWBOT_DEFAULT_CAPITAL", "DEFAULT_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCapital = f
		}
	}
	if v := firstEnv("GROWWBOT_DEFAULT_RISK_PERCENT", "DEFAULT_RISK_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.RiskPercent = f
		}
	}
	if v := firstEnv("GROWWBOT_PAPER_MODE", "PAPER_MODE_DEFAULT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Monitor.PaperMode = b
		}
	}
	if v := os.Getenv("GROWWBOT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Broker.Provider {
	case "kite", "replay":
	default:
		return fmt.Errorf("invalid broker provider: %s (must be 'kite' or 'replay')", c.Broker.Provider)
	}
	if c.Broker.Provider == "replay" && c.Broker.ReplayDir == "" {
		return fmt.Errorf("broker.replay_dir is required for the replay provider")
	}
	if c.Broker.RequestsPerSecond <= 0 {
		return fmt.Errorf("broker.requests_per_second must be positive")
	}
	if c.Broker.BreakerTripAfter <= 0 || c.Broker.BreakerCooldown <= 0 {
		return fmt.Errorf("broker.breaker_trip_after and broker.breaker_cooldown must be positive")
	}

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Backtest.RiskPercent <= 0 || c.Backtest.RiskPercent > 100 {
		return fmt.Errorf("backtest.risk_percent must be between 0 and 100")
	}
	if c.Backtest.MaxPositions < 0 {
		return fmt.Errorf("backtest.max_positions must be non-negative")
	}
	switch strings.ToLower(c.Backtest.TiePolicy) {
	case "", "proximity", "conservative":
	default:
		return fmt.Errorf("invalid tie policy: %s (must be 'proximity' or 'conservative')", c.Backtest.TiePolicy)
	}
	for _, h := range c.Backtest.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
	}

	if c.DailyPicks.MaxPositionsPerDay < 0 {
		return fmt.Errorf("daily_picks.max_positions_per_day must be non-negative")
	}
	if c.DailyPicks.Workers < 1 {
		return fmt.Errorf("daily_picks.workers must be at least 1")
	}
	switch c.DailyPicks.Source {
	case "screener", "file":
	default:
		return fmt.Errorf("invalid daily_picks.source: %s (must be 'screener' or 'file')", c.DailyPicks.Source)
	}

	if c.Strategies.MomentumScalp.EMAFast <= 0 || c.Strategies.MomentumScalp.EMASlow <= c.Strategies.MomentumScalp.EMAFast {
		return fmt.Errorf("strategies.momentum_scalp: ema_slow must exceed a positive ema_fast")
	}

	if c.Monitor.BatchSize < 1 {
		return fmt.Errorf("monitor.batch_size must be at least 1")
	}
	if c.Monitor.MaxBackoff < c.Monitor.BaseBackoff {
		return fmt.Errorf("monitor.max_backoff must not be below monitor.base_backoff")
	}

	switch c.Notify.Level {
	case "", "all", "trades_only", "errors_only":
	default:
		return fmt.Errorf("invalid notify.level: %s (must be 'all', 'trades_only' or 'errors_only')", c.Notify.Level)
	}

	return nil
}

// Registry returns the strategy registry tuned with the configured thresholds.
func (c *Config) Registry() *strategy.Registry {
	return strategy.NewRegistryWithParams(c.Strategies.MomentumScalp, c.Strategies.MeanReversion)
}

// IsPaperMode returns true if the monitor must not place real orders.
func (c *Config) IsPaperMode() bool {
	return c.Monitor.PaperMode
}
