package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Environment string

	Server     ServerConfig
	Redis      RedisConfig
	Scylla     ScyllaConfig
	Kafka      KafkaConfig
	Clickhouse ClickhouseConfig
	OTP        OTPConfig
	Referral   ReferralConfig
	JWT        JWTConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CertFile       string
	KeyFile        string
	AllowedOrigins []string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes       []string
	Keyspace    string
	Username    string
	Password    string
	UserBuckets int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	AuditTopic string
}

type ClickhouseConfig struct {
	Enabled    bool
	URL        string
	Username   string
	Password   string
	Database   string
	AuditTable string
}

// OTPConfig controls the login challenge lifecycle. All values are injected
// here rather than compiled in so tests can run with short windows.
type OTPConfig struct {
	Lifetime      time.Duration
	Digits        int
	MaxAttempts   int
	SweepInterval time.Duration
}

type ReferralConfig struct {
	CodeLength  int
	MaxAttempts int
}

type JWTConfig struct {
	Secret   string
	Lifetime time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment, falling back to a
// .env file outside production.
func LoadConfig() *Config {
	env := getEnv("APP_ENV", "development")
	if env != "production" {
		_ = godotenv.Load()
	}

	return &Config{
		Environment: env,
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CertFile:       getEnv("SERVER_CERT_FILE", ""),
			KeyFile:        getEnv("SERVER_KEY_FILE", ""),
			AllowedOrigins: getEnvSlice("SERVER_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:       getEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace:    getEnv("SCYLLA_KEYSPACE", "otp_auth"),
			Username:    getEnv("SCYLLA_USERNAME", ""),
			Password:    getEnv("SCYLLA_PASSWORD", ""),
			UserBuckets: getEnvInt("SCYLLA_USER_BUCKETS", 64),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "auth-audit-events"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:    getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:        getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username:   getEnv("CLICKHOUSE_USERNAME", "default"),
			Password:   getEnv("CLICKHOUSE_PASSWORD", ""),
			Database:   getEnv("CLICKHOUSE_DATABASE", "otp_auth"),
			AuditTable: getEnv("CLICKHOUSE_AUDIT_TABLE", "audit_events"),
		},
		OTP: OTPConfig{
			Lifetime:      getEnvDuration("OTP_LIFETIME", 30*time.Minute),
			Digits:        getEnvInt("OTP_DIGITS", 6),
			MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
			SweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 5*time.Minute),
		},
		Referral: ReferralConfig{
			CodeLength:  getEnvInt("REFERRAL_CODE_LENGTH", 6),
			MaxAttempts: getEnvInt("REFERRAL_MAX_ATTEMPTS", 10),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			Lifetime: getEnvDuration("JWT_LIFETIME", 168*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
