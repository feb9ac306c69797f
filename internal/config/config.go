package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppEnv   string `env:"APP_ENV"`
	LogLevel string `env:"LOG_LEVEL"`

	HTTPConfig struct {
		Port             int           `env:"HTTP_PORT"`
		AllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS"`
		PayRatePerMinute int           `env:"PAY_RATE_LIMIT_PER_MIN"`
		PayRateBurst     int           `env:"PAY_RATE_LIMIT_BURST"`
		RequestTimeout   time.Duration `env:"HTTP_REQUEST_TIMEOUT"`
	}

	StoreDriver    string `env:"STORE_DRIVER"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`
	DBConfig       struct {
		Host     string `env:"FAREPAY_DB_HOST"`
		Port     int    `env:"FAREPAY_DB_PORT"`
		User     string `env:"FAREPAY_DB_USER"`
		Password string `env:"FAREPAY_DB_PASSWORD"`
		Name     string `env:"FAREPAY_DB_NAME"`
		SSLMode  string `env:"FAREPAY_DB_SSLMODE"`
	}

	KafkaEnabled            bool   `env:"KAFKA_ENABLED"`
	KafkaBrokerURL          string `env:"KAFKA_BROKER_URL"`
	KafkaSessionEventsTopic string `env:"KAFKA_SESSION_EVENTS_TOPIC"`
	KafkaConsumerGroup      string `env:"KAFKA_CONSUMER_GROUP"`

	RedisConfig struct {
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB"`
		TTL      time.Duration `env:"STATUS_CACHE_TTL"`
	}

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	DarajaConfig struct {
		BaseURL          string        `env:"DARAJA_BASE_URL"`
		ConsumerKey      string        `env:"DARAJA_CONSUMER_KEY"`
		ConsumerSecret   string        `env:"DARAJA_CONSUMER_SECRET"`
		ShortCode        string        `env:"DARAJA_SHORTCODE"`
		PassKey          string        `env:"DARAJA_PASSKEY"`
		CallbackURL      string        `env:"DARAJA_CALLBACK_URL"`
		TransactionType  string        `env:"DARAJA_TRANSACTION_TYPE"`
		AccountReference string        `env:"DARAJA_ACCOUNT_REFERENCE"`
		Timeout          time.Duration `env:"DARAJA_TIMEOUT"`
	}

	FareMinimumTotal decimal.Decimal `env:"FARE_MINIMUM_TOTAL"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.AppEnv = getEnvOrDefault("APP_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.HTTPConfig.Port = getEnvAsInt("HTTP_PORT", 8080)
	cfg.HTTPConfig.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"})
	cfg.HTTPConfig.PayRatePerMinute = getEnvAsInt("PAY_RATE_LIMIT_PER_MIN", 5)
	cfg.HTTPConfig.PayRateBurst = getEnvAsInt("PAY_RATE_LIMIT_BURST", 2)
	cfg.HTTPConfig.RequestTimeout = getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second)

	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres))
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file:///app/migrations")
	cfg.DBConfig.Host = getEnvOrDefault("FAREPAY_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("FAREPAY_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("FAREPAY_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("FAREPAY_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("FAREPAY_DB_NAME", "farepay_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("FAREPAY_DB_SSLMODE", "disable")

	cfg.KafkaEnabled = getEnvAsBool("KAFKA_ENABLED", true)
	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaSessionEventsTopic = getEnvOrDefault("KAFKA_SESSION_EVENTS_TOPIC", "farepay.session.resolved")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "farepay-status-cache-group")

	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", "")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.RedisConfig.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.RedisConfig.TTL = getEnvAsDuration("STATUS_CACHE_TTL", 24*time.Hour)

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.DarajaConfig.BaseURL = getEnvOrDefault("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke")
	cfg.DarajaConfig.ConsumerKey = getEnvOrDefault("DARAJA_CONSUMER_KEY", "")
	cfg.DarajaConfig.ConsumerSecret = getEnvOrDefault("DARAJA_CONSUMER_SECRET", "")
	cfg.DarajaConfig.ShortCode = getEnvOrDefault("DARAJA_SHORTCODE", "")
	cfg.DarajaConfig.PassKey = getEnvOrDefault("DARAJA_PASSKEY", "")
	cfg.DarajaConfig.CallbackURL = getEnvOrDefault("DARAJA_CALLBACK_URL", "")
	cfg.DarajaConfig.TransactionType = getEnvOrDefault("DARAJA_TRANSACTION_TYPE", "CustomerPayBillOnline")
	cfg.DarajaConfig.AccountReference = getEnvOrDefault("DARAJA_ACCOUNT_REFERENCE", "Fare")
	cfg.DarajaConfig.Timeout = getEnvAsDuration("DARAJA_TIMEOUT", 30*time.Second)

	minimum, err := decimal.NewFromString(getEnvOrDefault("FARE_MINIMUM_TOTAL", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid FARE_MINIMUM_TOTAL: %w", err)
	}
	cfg.FareMinimumTotal = minimum

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	required := []struct{ key, value string }{
		{"DARAJA_CONSUMER_KEY", c.DarajaConfig.ConsumerKey},
		{"DARAJA_CONSUMER_SECRET", c.DarajaConfig.ConsumerSecret},
		{"DARAJA_SHORTCODE", c.DarajaConfig.ShortCode},
		{"DARAJA_PASSKEY", c.DarajaConfig.PassKey},
		{"DARAJA_CALLBACK_URL", c.DarajaConfig.CallbackURL},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if !c.FareMinimumTotal.IsPositive() {
		errs = append(errs, errors.New("FARE_MINIMUM_TOTAL must be positive"))
	}
	if c.HTTPConfig.PayRatePerMinute <= 0 {
		errs = append(errs, errors.New("PAY_RATE_LIMIT_PER_MIN must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
