package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds all configuration for the loan service.
type Config struct {
	// gRPC server port
	GRPCPort int
	// HTTP health/metrics port
	HTTPPort int
	DB       DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Outbox   OutboxConfig
	JWT      JWTConfig
	TLS      TLSConfig
	Log      LogConfig
	Tracing  TracingConfig
	// Service name for observability
	ServiceName string
	// GRPCReflection registers the reflection service.
	GRPCReflection bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL overrides the individual connection fields when set.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	// MigrateOnStart applies embedded migrations before serving.
	MigrateOnStart bool
}

// KafkaConfig holds Kafka connection settings and topic names.
type KafkaConfig struct {
	Brokers         []string
	ClientID        string
	ConsumerGroup   string
	EventsTopic     string
	MilestonesTopic string
	// MaxRetryElapsed bounds conflict retries on one consumed message.
	MaxRetryElapsed time.Duration
	SASLMechanism   string
	SASLUsername    string
	SASLPassword    string
	TLS             bool
}

// RedisConfig holds the product cache connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// JWTConfig selects how bearer tokens are validated. A public key wins over
// the shared secret.
type JWTConfig struct {
	PublicKeyPEM  string
	PublicKeyFile string
	Secret        string
	Issuer        string
}

// TLSConfig enables gRPC TLS when both files are set.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Enabled reports whether TLS material is configured.
func (c TLSConfig) Enabled() bool { return c.CertFile != "" && c.KeyFile != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig holds OTLP exporter settings. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		GRPCPort:       getEnvInt("GRPC_PORT", 9087),
		HTTPPort:       getEnvInt("HTTP_PORT", 8087),
		GRPCReflection: getEnvBool("GRPC_REFLECTION", false),
		ServiceName:    getEnv("SERVICE_NAME", "microfinance-loan-service"),
		DB: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "loand"),
			Password:       getEnv("DB_PASSWORD", ""),
			Name:           getEnv("DB_NAME", "microfinance"),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MaxConns:       getEnvInt("DB_MAX_CONNS", 20),
			MigrateOnStart: getEnvBool("DB_MIGRATE_ON_START", true),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvList("KAFKA_BROKERS", "localhost:9092"),
			ClientID:        getEnv("KAFKA_CLIENT_ID", "loand"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "loand"),
			EventsTopic:     getEnv("KAFKA_EVENTS_TOPIC", "microfinance.loan.events"),
			MilestonesTopic: getEnv("KAFKA_MILESTONES_TOPIC", "microfinance.milestones.verified"),
			MaxRetryElapsed: getEnvDuration("KAFKA_MAX_RETRY_ELAPSED", 30*time.Second),
			SASLMechanism:   getEnv("KAFKA_SASL_MECHANISM", ""),
			SASLUsername:    getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:    getEnv("KAFKA_SASL_PASSWORD", ""),
			TLS:             getEnvBool("KAFKA_TLS", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_PRODUCT_TTL", 10*time.Minute),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		JWT: JWTConfig{
			PublicKeyPEM:  getEnv("JWT_PUBLIC_KEY", ""),
			PublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
			Secret:        getEnv("JWT_SECRET", ""),
			Issuer:        getEnv("JWT_ISSUER", "bib-gateway"),
		},
		TLS: TLSConfig{
			CertFile: getEnv("TLS_CERT_FILE", ""),
			KeyFile:  getEnv("TLS_KEY_FILE", ""),
			CAFile:   getEnv("TLS_CA_FILE", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.DB.URL == "" && c.DB.Password == "" {
		result = multierror.Append(result, errors.New("DB_PASSWORD or DATABASE_URL environment variable is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		result = multierror.Append(result, errors.New("KAFKA_BROKERS must list at least one broker"))
	}
	if c.JWT.PublicKeyPEM == "" && c.JWT.PublicKeyFile == "" && c.JWT.Secret == "" {
		result = multierror.Append(result, errors.New("one of JWT_PUBLIC_KEY, JWT_PUBLIC_KEY_FILE or JWT_SECRET is required"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		result = multierror.Append(result, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	if c.Outbox.BatchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.Outbox.BatchSize))
	}
	if c.GRPCPort == c.HTTPPort {
		result = multierror.Append(result, fmt.Errorf("GRPC_PORT and HTTP_PORT must differ, both are %d", c.GRPCPort))
	}
	return result.ErrorOrNil()
}

// GRPCAddr is the gRPC listen address.
func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr is the health/metrics listen address.
func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
