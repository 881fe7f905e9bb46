package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"velora/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Rental     RentalConfig     `yaml:"rental"`
	Worker     WorkerConfig     `yaml:"worker"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type RentalConfig struct {
	Timezone         string                `yaml:"timezone"`
	MaxBookingDays   int                   `yaml:"max_booking_days"`
	AvailabilityDays int                   `yaml:"availability_days"`
	BookingRateLimit BookingRateLimitConfig `yaml:"booking_rate_limit"`
}

type BookingRateLimitConfig struct {
	Attempts int `yaml:"attempts"`
	Window   int `yaml:"window"` // seconds
}

type WorkerConfig struct {
	QueueSize  int    `yaml:"queue_size"`
	MaxRetries int    `yaml:"max_retries"`
	RedisQueue string `yaml:"redis_queue"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	ManagerChatIDs []int64 `yaml:"manager_chat_ids"`
	Debug          bool    `yaml:"debug"`
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

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
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

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	RentalsSpreadsheetID string `yaml:"rentals_spreadsheet_id"`
	RentalsSheetName     string `yaml:"rentals_sheet_name"`
}

type CatalogConfig struct {
	SeedPath string `yaml:"seed_path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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

	if _, err := time.LoadLocation(c.Rental.Timezone); err != nil {
		return fmt.Errorf("invalid rental timezone %q: %w", c.Rental.Timezone, err)
	}

	if c.Rental.MaxBookingDays < 0 {
		return errors.New("rental.max_booking_days must not be negative")
	}

	if c.API.Auth.Enabled {
		for i, key := range c.API.Auth.APIKeys {
			if key.Key == "" {
				return fmt.Errorf("api key #%d has empty key", i+1)
			}
		}
	}

	if len(c.Telegram.ManagerChatIDs) > 0 && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when manager chats are configured")
	}

	return nil
}

// ValidateDresses checks a seed catalog before it is synced into the database.
func ValidateDresses(dresses []models.WeddingDress) error {
	ids := make(map[string]bool)
	for _, dress := range dresses {
		if dress.ID == "" {
			return fmt.Errorf("dress '%s' has empty ID", dress.Name)
		}
		if ids[dress.ID] {
			return fmt.Errorf("duplicate dress ID found: %s", dress.ID)
		}
		if dress.RentPrice <= 0 {
			return fmt.Errorf("dress '%s' must have a positive rent price", dress.ID)
		}
		ids[dress.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth switches on as soon as keys are configured
	if len(c.API.Auth.APIKeys) > 0 {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Rental defaults
	if c.Rental.Timezone == "" {
		c.Rental.Timezone = "UTC"
	}
	if c.Rental.MaxBookingDays == 0 {
		c.Rental.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Rental.AvailabilityDays == 0 {
		c.Rental.AvailabilityDays = models.DefaultAvailabilityDays
	}
	if c.Rental.BookingRateLimit.Attempts == 0 {
		c.Rental.BookingRateLimit.Attempts = models.BookingRateLimitAttempts
	}
	if c.Rental.BookingRateLimit.Window == 0 {
		c.Rental.BookingRateLimit.Window = models.BookingRateLimitWindow
	}

	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = models.WorkerQueueSize
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.RedisQueue == "" {
		c.Worker.RedisQueue = "velora:sync:queue"
	}

	if c.Google.RentalsSheetName == "" {
		c.Google.RentalsSheetName = "Rentals"
	}
	if c.Catalog.SeedPath == "" {
		c.Catalog.SeedPath = "configs/dresses.yaml"
	}
}

// Location returns the timezone calendar dates are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Rental.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
