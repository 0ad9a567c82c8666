package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address         string `yaml:"address" env:"HTTP_ADDRESS"`
	DocsEnabled     bool   `yaml:"docs_enabled" env:"HTTP_DOCS_ENABLED"`
	ShutdownSeconds int    `yaml:"shutdown_timeout_seconds" env:"HTTP_SHUTDOWN_TIMEOUT_SECONDS"`
}

func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownSeconds) * time.Second
}

type GRPCConfig struct {
	Address    string `yaml:"address" env:"GRPC_ADDRESS"`
	Reflection bool   `yaml:"reflection" env:"GRPC_REFLECTION"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	Host            string `yaml:"host" env:"DATABASE_HOST"`
	Port            int    `yaml:"port" env:"DATABASE_PORT"`
	User            string `yaml:"user" env:"DATABASE_USER"`
	Password        string `yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `yaml:"ssl_mode" env:"DATABASE_SSL_MODE"`
	MaxConns        int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
	ConnectAttempts int    `yaml:"connect_attempts" env:"DATABASE_CONNECT_ATTEMPTS"`
	Migrate         bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type KafkaConfig struct {
	Enabled            bool     `yaml:"enabled" env:"KAFKA_ENABLED"`
	Brokers            []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	BookingEventsTopic string   `yaml:"booking_events_topic" env:"KAFKA_BOOKING_EVENTS_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" env:"KAFKA_NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

type BookingConfig struct {
	FlightsCacheTTL         int `yaml:"flights_cache_ttl_seconds" env:"BOOKING_FLIGHTS_CACHE_TTL_SECONDS"`
	StatsCacheTTL           int `yaml:"stats_cache_ttl_seconds" env:"BOOKING_STATS_CACHE_TTL_SECONDS"`
	IdempotencyTTLMinutes   int `yaml:"idempotency_ttl_minutes" env:"BOOKING_IDEMPOTENCY_TTL_MINUTES"`
	CancellationNoticeHours int `yaml:"cancellation_notice_hours" env:"BOOKING_CANCELLATION_NOTICE_HOURS"`
	ReferenceAttempts       int `yaml:"reference_attempts" env:"BOOKING_REFERENCE_ATTEMPTS"`
}

func (b BookingConfig) FlightsCacheDuration() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

func (b BookingConfig) StatsCacheDuration() time.Duration {
	return time.Duration(b.StatsCacheTTL) * time.Second
}

func (b BookingConfig) IdempotencyDuration() time.Duration {
	return time.Duration(b.IdempotencyTTLMinutes) * time.Minute
}

func (b BookingConfig) CancellationNotice() time.Duration {
	return time.Duration(b.CancellationNoticeHours) * time.Hour
}

type WorkerConfig struct {
	OutboxPollSeconds      int    `yaml:"outbox_poll_seconds" env:"WORKER_OUTBOX_POLL_SECONDS"`
	OutboxBatchSize        int    `yaml:"outbox_batch_size" env:"WORKER_OUTBOX_BATCH_SIZE"`
	OutboxLeaseSeconds     int    `yaml:"outbox_lease_seconds" env:"WORKER_OUTBOX_LEASE_SECONDS"`
	CompletionSweepMinutes int    `yaml:"completion_sweep_minutes" env:"WORKER_COMPLETION_SWEEP_MINUTES"`
	MetricsAddress         string `yaml:"metrics_address" env:"WORKER_METRICS_ADDRESS"`
}

func (w WorkerConfig) OutboxPollInterval() time.Duration {
	return time.Duration(w.OutboxPollSeconds) * time.Second
}

// OutboxClaimLease is how long a claimed event may stay unpublished before
// another relay pass picks it up again.
func (w WorkerConfig) OutboxClaimLease() time.Duration {
	return time.Duration(w.OutboxLeaseSeconds) * time.Second
}

func (w WorkerConfig) CompletionSweepInterval() time.Duration {
	return time.Duration(w.CompletionSweepMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// LoadConfig reads the YAML file at path, lets environment variables override it,
// fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setString(&c.HTTP.Address, ":8080")
	setInt(&c.HTTP.ShutdownSeconds, 10)
	setString(&c.GRPC.Address, ":9090")

	setString(&c.Database.Driver, DriverPostgres)
	setString(&c.Database.Host, "localhost")
	setInt(&c.Database.Port, 5432)
	setString(&c.Database.SSLMode, "disable")
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	setInt(&c.Database.ConnectAttempts, 5)

	setString(&c.Redis.Addr, "localhost:6379")

	setString(&c.Kafka.BookingEventsTopic, "booking-events")
	setString(&c.Kafka.NotificationsTopic, "booking-events")
	setString(&c.Kafka.GroupID, "flight-finders-notifications")

	setInt(&c.Booking.FlightsCacheTTL, 30)
	setInt(&c.Booking.StatsCacheTTL, 10)
	setInt(&c.Booking.IdempotencyTTLMinutes, 24*60)
	setInt(&c.Booking.CancellationNoticeHours, 24)
	setInt(&c.Booking.ReferenceAttempts, 5)

	setInt(&c.Worker.OutboxPollSeconds, 2)
	setInt(&c.Worker.OutboxBatchSize, 50)
	setInt(&c.Worker.OutboxLeaseSeconds, 300)
	setInt(&c.Worker.CompletionSweepMinutes, 10)
	setString(&c.Worker.MetricsAddress, ":9093")

	setString(&c.Log.Level, "info")
	setString(&c.Log.Format, "json")
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of postgres, memory", c.Database.Driver))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Booking.CancellationNoticeHours < 0 {
		errs = append(errs, errors.New("booking.cancellation_notice_hours must not be negative"))
	}
	if c.Worker.OutboxBatchSize < 1 {
		errs = append(errs, errors.New("worker.outbox_batch_size must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
