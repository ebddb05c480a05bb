package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"signalbench/internal/indicator"
)

// Config holds all application configuration.
//
// Values come from built-in defaults, then an optional TOML file named by
// CONFIG_FILE, then environment variables (a .env file is loaded first if
// present). Later layers win.
type Config struct {
	// Series acquisition
	Source     string    `toml:"source"` // sqlite | csv | smartapi
	SQLitePath string    `toml:"sqlite_path"`
	CSVDir     string    `toml:"csv_dir"`
	StartDate  time.Time `toml:"start_date"`

	// Evaluation defaults
	Policy     string          `toml:"policy"`
	Span       string          `toml:"span"`
	Workers    int             `toml:"workers"`
	Indicators IndicatorConfig `toml:"indicators"`

	// Angel One SmartAPI (required only for source=smartapi)
	AngelAPIKey     string `toml:"angel_api_key"`
	AngelClientCode string `toml:"angel_client_code"`
	AngelPassword   string `toml:"angel_password"`
	AngelTOTPSecret string `toml:"angel_totp_secret"`
	AngelExchange   string `toml:"angel_exchange"`

	// Infrastructure
	RedisAddr     string        `toml:"redis_addr"` // empty disables the result cache
	RedisPassword string        `toml:"redis_password"`
	ResultTTL     time.Duration `toml:"-"`
	MetricsAddr   string        `toml:"metrics_addr"`
	HTTPAddr      string        `toml:"http_addr"`
	JournalDSN    string        `toml:"journal_dsn"` // postgres DSN; empty keeps the sqlite journal

	// Report archive (S3-compatible); empty bucket disables it
	ArchiveBucket   string `toml:"archive_bucket"`
	ArchivePrefix   string `toml:"archive_prefix"`
	ArchiveRegion   string `toml:"archive_region"`
	ArchiveEndpoint string `toml:"archive_endpoint"`

	// Notifications
	TelegramBotToken string `toml:"telegram_bot_token"`
	TelegramChatID   string `toml:"telegram_chat_id"`
	WebhookURL       string `toml:"webhook_url"`
	AlertWithinBars  int    `toml:"alert_within_bars"`
}

// IndicatorConfig mirrors indicator.Params for the TOML file.
type IndicatorConfig struct {
	OscPeriod  int     `toml:"osc_period"`
	MAPeriod   int     `toml:"ma_period"`
	MAKind     string  `toml:"ma_kind"`
	MACDSlow   int     `toml:"macd_slow"`
	MACDFast   int     `toml:"macd_fast"`
	BandLength int     `toml:"band_length"`
	BandStd    float64 `toml:"band_std"`

	SupportWindow int `toml:"support_window"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := indicator.DefaultParams()
	return Config{
		Source:     "sqlite",
		SQLitePath: "data/signalbench.db",
		CSVDir:     "data/csv",
		StartDate:  time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),

		Policy:  "crossover_forward",
		Span:    "daily",
		Workers: 4,
		Indicators: IndicatorConfig{
			OscPeriod:  p.OscPeriod,
			MAPeriod:   p.MAPeriod,
			MAKind:     string(p.MAKind),
			MACDSlow:   p.MACDSlow,
			MACDFast:   p.MACDFast,
			BandLength: p.BandLength,
			BandStd:    p.BandStd,

			SupportWindow: p.SupportWindow,
		},

		AngelExchange: "NSE",

		ResultTTL:   12 * time.Hour,
		MetricsAddr: ":9090",
		HTTPAddr:    ":8080",

		ArchivePrefix: "reports",
		ArchiveRegion: "us-east-1",

		AlertWithinBars: 2,
	}
}

// Load reads configuration and exits on error.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := LoadFrom(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// LoadFrom builds the configuration from defaults, the TOML file at path
// (skipped when empty) and the environment, then validates it.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		log.Printf("[config] loaded %s", path)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(c *Config) {
	c.Source = getEnv("SIGNAL_SOURCE", c.Source)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.CSVDir = getEnv("CSV_DIR", c.CSVDir)
	c.StartDate = getEnvDate("START_DATE", c.StartDate)

	c.Policy = getEnv("POLICY", c.Policy)
	c.Span = getEnv("SPAN", c.Span)
	c.Workers = getEnvInt("WORKERS", c.Workers)

	c.AngelAPIKey = getEnv("ANGEL_API_KEY", c.AngelAPIKey)
	c.AngelClientCode = getEnv("ANGEL_CLIENT_CODE", c.AngelClientCode)
	c.AngelPassword = getEnv("ANGEL_PASSWORD", c.AngelPassword)
	c.AngelTOTPSecret = getEnv("ANGEL_TOTP_SECRET", c.AngelTOTPSecret)
	c.AngelExchange = getEnv("ANGEL_EXCHANGE", c.AngelExchange)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.ResultTTL = getEnvDuration("RESULT_TTL", c.ResultTTL)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.JournalDSN = getEnv("JOURNAL_DSN", c.JournalDSN)

	c.ArchiveBucket = getEnv("ARCHIVE_BUCKET", c.ArchiveBucket)
	c.ArchivePrefix = getEnv("ARCHIVE_PREFIX", c.ArchivePrefix)
	c.ArchiveRegion = getEnv("ARCHIVE_REGION", c.ArchiveRegion)
	c.ArchiveEndpoint = getEnv("ARCHIVE_ENDPOINT", c.ArchiveEndpoint)

	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.AlertWithinBars = getEnvInt("ALERT_WITHIN_BARS", c.AlertWithinBars)
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Source {
	case "sqlite", "csv":
	case "smartapi":
		var missing []string
		for key, v := range map[string]string{
			"ANGEL_API_KEY":     c.AngelAPIKey,
			"ANGEL_CLIENT_CODE": c.AngelClientCode,
			"ANGEL_PASSWORD":    c.AngelPassword,
			"ANGEL_TOTP_SECRET": c.AngelTOTPSecret,
		} {
			if v == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("source smartapi requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown SIGNAL_SOURCE %q (want sqlite, csv or smartapi)", c.Source)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers)
	}
	if _, err := indicator.ParseMAKind(c.Indicators.MAKind); err != nil {
		return err
	}
	return nil
}

// IndicatorParams converts the indicator section to indicator.Params.
func (c *Config) IndicatorParams() indicator.Params {
	kind, err := indicator.ParseMAKind(c.Indicators.MAKind)
	if err != nil {
		kind = indicator.Exponential
	}
	return indicator.Params{
		OscPeriod:  c.Indicators.OscPeriod,
		MAPeriod:   c.Indicators.MAPeriod,
		MAKind:     kind,
		MACDSlow:   c.Indicators.MACDSlow,
		MACDFast:   c.Indicators.MACDFast,
		BandLength: c.Indicators.BandLength,
		BandStd:    c.Indicators.BandStd,

		SupportWindow: c.Indicators.SupportWindow,
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return d
}

func getEnvDate(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return d
}
