package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"npbc-dashboard/internal/logging"
	"npbc-dashboard/internal/timerange"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Charts   ChartsConfig   `mapstructure:"charts"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// APIConfig describes the boiler controller's HTTP API.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`

	// MaxAttempts and BaseDelay are not read from files or the
	// environment: the retry schedule is fixed at 3 attempts with 1s and 2s
	// waits. Zero selects that schedule; tests shorten it in code.
	MaxAttempts int           `mapstructure:"-"`
	BaseDelay   time.Duration `mapstructure:"-"`
}

// PollerConfig governs the polling cadence and time window.
type PollerConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	DefaultRange     int           `mapstructure:"default_range"`
	Timezone         string        `mapstructure:"timezone"`
	JournalRetention time.Duration `mapstructure:"journal_retention"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. When DSN is empty the
// SQLite store is used instead.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SQLiteConfig locates the local preference database.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// HTTPConfig configures the dashboard listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChartsConfig sets rendered chart dimensions.
type ChartsConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// AlertingConfig defines cycle failure notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for notifications.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NPBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "npbc-dashboard")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("api.base_url", "http://localhost:8088")
	v.SetDefault("api.request_timeout", "10s")

	v.SetDefault("poller.interval", "30s")
	v.SetDefault("poller.default_range", int(timerange.Default))
	v.SetDefault("poller.timezone", "Local")
	v.SetDefault("poller.journal_retention", "168h")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("sqlite.path", "npbc-dashboard.db")

	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("charts.width", 1280)
	v.SetDefault("charts.height", 480)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.RequestTimeout < 0 {
		return fmt.Errorf("api.request_timeout cannot be negative")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be greater than zero")
	}
	if c.Poller.JournalRetention < 0 {
		return fmt.Errorf("poller.journal_retention cannot be negative")
	}
	if _, err := timerange.Parse(c.Poller.DefaultRange); err != nil {
		return fmt.Errorf("poller.default_range: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("charts.width and charts.height must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// Location resolves the display timezone used for axis labels.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Poller.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("poller.timezone: %w", err)
	}
	return loc, nil
}

// DefaultRange returns the validated initial time range.
func (c *Config) DefaultRange() timerange.Range {
	r, err := timerange.Parse(c.Poller.DefaultRange)
	if err != nil {
		return timerange.Default
	}
	return r
}
