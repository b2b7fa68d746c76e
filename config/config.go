package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"shelfy/internal/vitesy"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// DefaultPollIntervalSeconds matches the vendor app refresh rate
const DefaultPollIntervalSeconds = 300

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Vitesy   VitesyConfig   `json:"vitesy"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	// APIKey protects the /v1 routes; empty leaves them open
	APIKey string `json:"api_key"`
}

// VitesyConfig contains the Vitesy account and endpoints
type VitesyConfig struct {
	Email               string `json:"email"`
	Password            string `json:"password"`
	AuthBaseURL         string `json:"auth_base_url"`
	APIBaseURL          string `json:"api_base_url"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
}

// TelegramConfig contains maintenance alert settings. Alerts are disabled
// without a bot token.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   int64  `json:"chat_id"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Enabled reports whether alerts should be sent
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// PollInterval returns the poll period
func (v VitesyConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSeconds) * time.Second
}

// Authenticator returns the identity provider settings for the account
func (v VitesyConfig) Authenticator() vitesy.Config {
	return vitesy.Config{
		Email:       v.Email,
		Password:    v.Password,
		AuthBaseURL: v.AuthBaseURL,
		APIBaseURL:  v.APIBaseURL,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Vitesy.Email == "" || c.Vitesy.Password == "" {
		return fmt.Errorf("%w: Vitesy email and password are required", ErrInvalidConfig)
	}

	if c.Vitesy.PollIntervalSeconds < 0 {
		return fmt.Errorf("%w: poll interval must not be negative", ErrInvalidConfig)
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return fmt.Errorf("%w: Telegram chat id is required with a bot token", ErrInvalidConfig)
	}

	if c.Vitesy.AuthBaseURL == "" {
		c.Vitesy.AuthBaseURL = vitesy.DefaultAuthBaseURL
	}
	if c.Vitesy.APIBaseURL == "" {
		c.Vitesy.APIBaseURL = vitesy.DefaultAPIBaseURL
	}
	if c.Vitesy.PollIntervalSeconds == 0 {
		c.Vitesy.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SHELFY_HOST", "0.0.0.0"),
			Port: getEnvInt("SHELFY_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("SHELFY_DB_PATH", "./shelfy.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("SHELFY_API_KEY", ""),
		},
		Vitesy: VitesyConfig{
			Email:               getEnv("SHELFY_VITESY_EMAIL", ""),
			Password:            getEnv("SHELFY_VITESY_PASSWORD", ""),
			AuthBaseURL:         getEnv("SHELFY_VITESY_AUTH_URL", vitesy.DefaultAuthBaseURL),
			APIBaseURL:          getEnv("SHELFY_VITESY_API_URL", vitesy.DefaultAPIBaseURL),
			PollIntervalSeconds: getEnvInt("SHELFY_POLL_INTERVAL", DefaultPollIntervalSeconds),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("SHELFY_TELEGRAM_BOT_TOKEN", ""),
			ChatID:   int64(getEnvInt("SHELFY_TELEGRAM_CHAT_ID", 0)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("SHELFY_LOG_LEVEL", "info"),
			Format: getEnv("SHELFY_LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadAuto loads path when given and the environment otherwise
func LoadAuto(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	return LoadFromEnv()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}
