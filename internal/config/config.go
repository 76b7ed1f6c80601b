package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Provider   ProviderConfig
	Dispatcher DispatcherConfig
	Env        string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration for outcome events
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Queue    string
}

// ProviderConfig holds mail provider configuration.
// FromAddress, when set, is used verbatim as the sender and overrides
// the display-name-plus-random-mailbox synthesis on SendingDomain.
type ProviderConfig struct {
	APIKey        string
	BaseURL       string
	SendingDomain string
	FromAddress   string
	FromName      string
}

// DispatcherConfig holds dispatch sweep configuration. MetricsPort is
// where the dispatcher process exposes its own /metrics endpoint.
type DispatcherConfig struct {
	Interval    time.Duration
	SendTimeout time.Duration
	Concurrency int
	BatchLimit  int
	MetricsPort string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "mailburst"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "mailburst_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password: getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			Queue:    getEnv("RABBITMQ_OUTCOME_QUEUE", "dispatch_outcomes"),
		},
		Provider: ProviderConfig{
			APIKey:        getEnv("RESEND_API_KEY", ""),
			BaseURL:       getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			SendingDomain: getEnv("SENDING_DOMAIN", "resend.dev"),
			FromAddress:   getEnv("SENDER_FROM", ""),
			FromName:      getEnv("SENDER_NAME", "Campaign Sender"),
		},
		Dispatcher: DispatcherConfig{
			Interval:    getEnvAsDuration("DISPATCH_INTERVAL", 30*time.Second),
			SendTimeout: getEnvAsDuration("SEND_TIMEOUT", 15*time.Second),
			Concurrency: getEnvAsInt("DISPATCH_CONCURRENCY", 8),
			BatchLimit:  getEnvAsInt("DISPATCH_BATCH_LIMIT", 200),
			MetricsPort: getEnv("DISPATCH_METRICS_PORT", "9090"),
		},
		Env: getEnv("ENV", "development"),
	}

	// Validate required fields
	if config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration or returns default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
