package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"hilot/internal/fees"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Fees       FeesConfig       `yaml:"fees"`
	Booking    BookingConfig    `yaml:"booking"`
	Payout     PayoutConfig     `yaml:"payout"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// FeesConfig drives the settlement split. The independent pair and the
// shop-affiliated triple must each sum to exactly 100.
type FeesConfig struct {
	PlatformFeePercentage         float64 `yaml:"platform_fee_percentage"`
	ShopFeePercentage             float64 `yaml:"shop_fee_percentage"`
	ProviderShopPercentage        float64 `yaml:"provider_shop_percentage"`
	ProviderIndependentPercentage float64 `yaml:"provider_independent_percentage"`
}

// Policy converts the YAML section to the settlement policy value.
func (f FeesConfig) Policy() fees.Policy {
	return fees.Policy{
		PlatformPct:            f.PlatformFeePercentage,
		ShopPct:                f.ShopFeePercentage,
		ProviderShopPct:        f.ProviderShopPercentage,
		ProviderIndependentPct: f.ProviderIndependentPercentage,
	}
}

type BookingConfig struct {
	AcceptTimeoutSeconds           int     `yaml:"accept_timeout_seconds"`
	SweepIntervalSeconds           int     `yaml:"sweep_interval_seconds"`
	CancellationFullRefundHours    int     `yaml:"cancellation_full_refund_hours"`
	CancellationPartialRefundHours int     `yaml:"cancellation_partial_refund_hours"`
	CancellationPartialRefundPct   float64 `yaml:"cancellation_partial_refund_percentage"`
}

func (b BookingConfig) AcceptTimeout() time.Duration {
	return time.Duration(b.AcceptTimeoutSeconds) * time.Second
}

func (b BookingConfig) SweepInterval() time.Duration {
	return time.Duration(b.SweepIntervalSeconds) * time.Second
}

type PayoutConfig struct {
	MinAmount int64 `yaml:"min_amount"`
	FlatFee   int64 `yaml:"flat_fee"`
}

// TelemetryConfig gates the arrival transition on location freshness.
// A zero staleness window disables the gate.
type TelemetryConfig struct {
	ArrivalStalenessSeconds int `yaml:"arrival_staleness_seconds"`
}

func (t TelemetryConfig) ArrivalStaleness() time.Duration {
	return time.Duration(t.ArrivalStalenessSeconds) * time.Second
}

type APIConfig struct {
	Enabled      bool               `yaml:"enabled"`
	Port         int                `yaml:"port"`
	HeaderAPIKey string             `yaml:"header_api_key"`
	APIKeys      []APIClientKey     `yaml:"api_keys"`
	RateLimit    APIRateLimitConfig `yaml:"rate_limit"`
}

type APIClientKey struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	ActorType string `yaml:"actor_type"`
	ActorID   int64  `yaml:"actor_id"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ReportSpreadsheetID   string `yaml:"report_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; YAML values may reference its variables.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := c.Fees.Policy().Validate(); err != nil {
		return err
	}

	if c.Booking.AcceptTimeoutSeconds <= 0 {
		return errors.New("booking accept timeout must be positive")
	}
	if c.Booking.CancellationFullRefundHours <= c.Booking.CancellationPartialRefundHours {
		return fmt.Errorf("full refund threshold (%dh) must exceed partial threshold (%dh)",
			c.Booking.CancellationFullRefundHours, c.Booking.CancellationPartialRefundHours)
	}
	if c.Booking.CancellationPartialRefundHours <= 0 {
		return errors.New("partial refund threshold must be positive")
	}
	if c.Booking.CancellationPartialRefundPct < 0 || c.Booking.CancellationPartialRefundPct > 100 {
		return fmt.Errorf("partial refund percentage %v out of range [0, 100]",
			c.Booking.CancellationPartialRefundPct)
	}

	if c.Payout.MinAmount < 0 {
		return errors.New("minimum payout amount cannot be negative")
	}
	if c.Payout.FlatFee < 0 {
		return errors.New("payout flat fee cannot be negative")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram notifier requires a bot token")
	}
	if c.Google.Enabled && (c.Google.GoogleCredentialsFile == "" || c.Google.ReportSpreadsheetID == "") {
		return errors.New("google reporting requires credentials file and spreadsheet id")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hilot"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.HeaderAPIKey == "" {
		c.API.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 20
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Booking.AcceptTimeoutSeconds == 0 {
		c.Booking.AcceptTimeoutSeconds = 30
	}
	if c.Booking.SweepIntervalSeconds == 0 {
		c.Booking.SweepIntervalSeconds = 5
	}
	if c.Booking.CancellationFullRefundHours == 0 {
		c.Booking.CancellationFullRefundHours = 24
	}
	if c.Booking.CancellationPartialRefundHours == 0 {
		c.Booking.CancellationPartialRefundHours = 12
	}
	if c.Booking.CancellationPartialRefundPct == 0 {
		c.Booking.CancellationPartialRefundPct = 70
	}

	if c.Telemetry.ArrivalStalenessSeconds == 0 {
		c.Telemetry.ArrivalStalenessSeconds = 120
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
