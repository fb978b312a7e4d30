package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection)
// - default: Values common across all environments (intervals, TTLs, timeouts)
// -----------------------------------------------------------------------------

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Log       LogConfig
	Inventory InventoryConfig
	Payment   PaymentConfig
	Booking   BookingConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize int    `envconfig:"REDIS_POOL_SIZE" default:"100"`
}

type KafkaConfig struct {
	Brokers               []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	BookingConfirmedTopic string   `envconfig:"KAFKA_BOOKING_CONFIRMED_TOPIC" default:"booking-confirmed"`
	Enabled               bool     `envconfig:"KAFKA_ENABLED" default:"true"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type InventoryConfig struct {
	Strategy             string `envconfig:"RESERVATION_STRATEGY" default:"distributed"`
	HoldTTLMinutes       int    `envconfig:"HOLD_TTL_MINUTES" default:"15"`
	ReaperIntervalMS     int    `envconfig:"HOLD_REAPER_INTERVAL_MS" default:"60000"`
	LockWaitSeconds      int    `envconfig:"RESERVATION_LOCK_WAIT_SECONDS" default:"5"`
	LockLeaseSeconds     int    `envconfig:"RESERVATION_LOCK_LEASE_SECONDS" default:"30"`
	FastCacheEnabled     bool   `envconfig:"IDEMPOTENCY_FAST_CACHE_ENABLED" default:"true"`
	FastCacheTTLHours    int    `envconfig:"IDEMPOTENCY_FAST_CACHE_TTL_HOURS" default:"24"`
	OptimisticMaxRetries int    `envconfig:"RESERVATION_OPTIMISTIC_MAX_RETRIES" default:"3"`
}

func (c InventoryConfig) HoldTTL() time.Duration {
	return time.Duration(c.HoldTTLMinutes) * time.Minute
}

func (c InventoryConfig) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalMS) * time.Millisecond
}

func (c InventoryConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

func (c InventoryConfig) LockLease() time.Duration {
	return time.Duration(c.LockLeaseSeconds) * time.Second
}

func (c InventoryConfig) FastCacheTTL() time.Duration {
	return time.Duration(c.FastCacheTTLHours) * time.Hour
}

type PaymentConfig struct {
	FastCacheEnabled   bool    `envconfig:"IDEMPOTENCY_FAST_CACHE_ENABLED" default:"true"`
	FastCacheTTLHours  int     `envconfig:"IDEMPOTENCY_FAST_CACHE_TTL_HOURS" default:"24"`
	GatewaySuccessRate float64 `envconfig:"GATEWAY_SUCCESS_RATE" default:"0.9"`
	GatewayMinDelayMS  int     `envconfig:"GATEWAY_MIN_DELAY_MS" default:"100"`
	GatewayMaxDelayMS  int     `envconfig:"GATEWAY_MAX_DELAY_MS" default:"300"`
}

func (c PaymentConfig) FastCacheTTL() time.Duration {
	return time.Duration(c.FastCacheTTLHours) * time.Hour
}

type BookingConfig struct {
	InventoryURL          string `envconfig:"INVENTORY_URL" default:"http://localhost:8082"`
	PaymentURL            string `envconfig:"PAYMENT_URL" default:"http://localhost:8083"`
	RequestTimeoutSeconds int    `envconfig:"CLIENT_REQUEST_TIMEOUT_SECONDS" default:"5"`
	ClientMaxAttempts     int    `envconfig:"CLIENT_MAX_ATTEMPTS" default:"3"`
	RecoveryEnabled       bool   `envconfig:"RECOVERY_ENABLED" default:"true"`
	RecoveryIntervalMS    int    `envconfig:"RECOVERY_INTERVAL_MS" default:"300000"`
	RecoveryStuckMinutes  int    `envconfig:"RECOVERY_STUCK_MINUTES" default:"10"`
	RecoveryGiveUpMinutes int    `envconfig:"RECOVERY_GIVE_UP_MINUTES" default:"1440"`
}

func (c BookingConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c BookingConfig) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalMS) * time.Millisecond
}

func (c BookingConfig) StuckThreshold() time.Duration {
	return time.Duration(c.RecoveryStuckMinutes) * time.Minute
}

func (c BookingConfig) GiveUpThreshold() time.Duration {
	return time.Duration(c.RecoveryGiveUpMinutes) * time.Minute
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8889"},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{Level: "error"},
		Inventory: InventoryConfig{
			Strategy:             "distributed",
			HoldTTLMinutes:       15,
			ReaperIntervalMS:     60000,
			LockWaitSeconds:      5,
			LockLeaseSeconds:     30,
			FastCacheEnabled:     false,
			FastCacheTTLHours:    24,
			OptimisticMaxRetries: 3,
		},
		Payment: PaymentConfig{
			GatewaySuccessRate: 1.0,
			GatewayMinDelayMS:  0,
			GatewayMaxDelayMS:  0,
		},
		Booking: BookingConfig{
			RequestTimeoutSeconds: 5,
			ClientMaxAttempts:     3,
			RecoveryEnabled:       true,
			RecoveryIntervalMS:    300000,
			RecoveryStuckMinutes:  10,
			RecoveryGiveUpMinutes: 1440,
		},
	}
}
