package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Auth       AuthConfig       `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Cache      CacheConfig
	Event      EventConfig
	Kafka      KafkaConfig
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
	// LockTimeoutMillis bounds how long a transaction waits for a row lock before failing
	LockTimeoutMillis int `mapstructure:"lock_timeout_ms" default:"5000"`
}

// BillingConfig holds invoice defaults and the recurring billing runner settings
type BillingConfig struct {
	DefaultInvoicePrefix  string        `mapstructure:"default_invoice_prefix" validate:"required,max=10"`
	DefaultCurrency       string        `mapstructure:"default_currency" validate:"required,len=3"`
	DefaultDueDays        int           `mapstructure:"default_due_days" validate:"min=0,max=365"`
	RetryMaxAttempts      int           `mapstructure:"retry_max_attempts" validate:"min=1,max=10"`
	RetryInitialInterval  time.Duration `mapstructure:"retry_initial_interval"`
	RunnerInterval        time.Duration `mapstructure:"runner_interval"`
	RunnerRateLimitPerSec float64       `mapstructure:"runner_rate_limit_per_second" validate:"gte=0"`
	RunnerBurst           int           `mapstructure:"runner_burst" validate:"gte=0"`
	RunnerConcurrency     int           `mapstructure:"runner_concurrency" validate:"gte=0"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// EventConfig selects where domain events are published
type EventConfig struct {
	PubSub types.PubSubType `mapstructure:"pubsub" default:"memory"`
	Topic  string           `mapstructure:"topic" default:"billing_events"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional, real environment variables take precedence
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/freelanceflow")

	v.SetEnvPrefix("FREELANCEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("postgres.lock_timeout_ms", 5000)
	v.SetDefault("billing.default_invoice_prefix", "INV")
	v.SetDefault("billing.default_currency", types.DefaultCurrency)
	v.SetDefault("billing.default_due_days", 30)
	v.SetDefault("billing.retry_max_attempts", 3)
	v.SetDefault("billing.retry_initial_interval", 100*time.Millisecond)
	v.SetDefault("billing.runner_interval", time.Hour)
	v.SetDefault("billing.runner_rate_limit_per_second", 5)
	v.SetDefault("billing.runner_burst", 1)
	v.SetDefault("billing.runner_concurrency", 4)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("event.pubsub", types.MemoryPubSub)
	v.SetDefault("event.topic", "billing_events")
	v.SetDefault("kafka.client_id", "freelanceflow")
	v.SetDefault("sentry.sample_rate", 1.0)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			DefaultInvoicePrefix: "INV",
			DefaultCurrency:      types.DefaultCurrency,
			DefaultDueDays:       30,
			RetryMaxAttempts:     3,
			RetryInitialInterval: 10 * time.Millisecond,
			RunnerInterval:       time.Hour,
			RunnerConcurrency:    4,
		},
		Cache: CacheConfig{Enabled: true, TTL: 5 * time.Minute},
		Event: EventConfig{PubSub: types.MemoryPubSub, Topic: "billing_events"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
