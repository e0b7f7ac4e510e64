package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rideshare/internal/domain"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Server         ServerConfig
	Store          string
	Database       DatabaseConfig
	Redis          RedisConfig
	RabbitMQ       RabbitMQConfig
	NewRelic       NewRelicConfig
	Auth           AuthConfig
	Log            LogConfig
	Wallet         WalletConfig
	Booking        BookingConfig
	Reconciler     ReconcilerConfig
	RideServiceURL string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig holds broker configuration. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	JWTSecret string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Path  string
	Debug bool
}

// WalletConfig holds wallet policy.
type WalletConfig struct {
	Currency string
	MinTopUp domain.Money
}

// BookingConfig holds booking policy and inventory ledger access settings.
type BookingConfig struct {
	MaxSeats         int
	ChargeOnApproval bool
	LookupTimeout    time.Duration
	LookupRetries    int
	ApprovalLease    time.Duration
}

// ReconcilerConfig holds compensation sweep settings.
type ReconcilerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)

	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rideshare")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "rideshare.events")

	v.SetDefault("NEW_RELIC_APP_NAME", "rideshare")
	v.SetDefault("NEW_RELIC_LICENSE_KEY", "")
	v.SetDefault("NEW_RELIC_ENABLED", false)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("DEBUG", false)

	v.SetDefault("WALLET_CURRENCY", "IDR")
	v.SetDefault("WALLET_MIN_TOP_UP", "10000.00")

	v.SetDefault("BOOKING_MAX_SEATS", 10)
	v.SetDefault("BOOKING_CHARGE_ON_APPROVAL", false)
	v.SetDefault("BOOKING_LOOKUP_TIMEOUT", 2*time.Second)
	v.SetDefault("BOOKING_LOOKUP_RETRIES", 2)
	v.SetDefault("BOOKING_APPROVAL_LEASE", 2*time.Minute)

	v.SetDefault("RECONCILER_INTERVAL", 30*time.Second)
	v.SetDefault("RECONCILER_MAX_ATTEMPTS", 10)
	v.SetDefault("RECONCILER_BATCH_SIZE", 50)

	v.SetDefault("RIDE_SERVICE_URL", "")
}

// Load reads configuration from the environment. Values in envFile, when it
// exists, are loaded into the environment first without overriding it.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	minTopUp, err := domain.ParseMoney(v.GetString("WALLET_MIN_TOP_UP"))
	if err != nil {
		return nil, fmt.Errorf("WALLET_MIN_TOP_UP: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Store: v.GetString("STORE_DRIVER"),
		Database: DatabaseConfig{
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Log: LogConfig{
			Path:  v.GetString("LOG_PATH"),
			Debug: v.GetBool("DEBUG"),
		},
		Wallet: WalletConfig{
			Currency: v.GetString("WALLET_CURRENCY"),
			MinTopUp: minTopUp,
		},
		Booking: BookingConfig{
			MaxSeats:         v.GetInt("BOOKING_MAX_SEATS"),
			ChargeOnApproval: v.GetBool("BOOKING_CHARGE_ON_APPROVAL"),
			LookupTimeout:    v.GetDuration("BOOKING_LOOKUP_TIMEOUT"),
			LookupRetries:    v.GetInt("BOOKING_LOOKUP_RETRIES"),
			ApprovalLease:    v.GetDuration("BOOKING_APPROVAL_LEASE"),
		},
		Reconciler: ReconcilerConfig{
			Interval:    v.GetDuration("RECONCILER_INTERVAL"),
			MaxAttempts: v.GetInt("RECONCILER_MAX_ATTEMPTS"),
			BatchSize:   v.GetInt("RECONCILER_BATCH_SIZE"),
		},
		RideServiceURL: v.GetString("RIDE_SERVICE_URL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Store != StoreMemory && c.Store != StorePostgres {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}
	if c.Booking.MaxSeats <= 0 {
		return fmt.Errorf("BOOKING_MAX_SEATS must be positive, got %d", c.Booking.MaxSeats)
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("RECONCILER_INTERVAL must be positive, got %s", c.Reconciler.Interval)
	}
	return nil
}
