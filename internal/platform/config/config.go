// Package config loads process configuration from the environment so main
// stays lean. Every knob has a development default; production overrides
// through COURSEFLOW_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "courseflow/pkg/platform/strings"
)

type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Auth     Auth
}

type Server struct {
	Addr            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Seed loads demo fixtures on startup.
	Seed bool
}

type Postgres struct {
	// URL empty means the in-memory stores back the services, which is the
	// development and test default.
	URL string
}

type Redis struct {
	// URL empty disables the summary cache.
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SummaryTTL   time.Duration
}

type Kafka struct {
	// Brokers empty disables the audit event stream.
	Brokers []string
	Topic   string
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getenv("COURSEFLOW_ADDR", ":8080"),
			LogLevel:        getenv("COURSEFLOW_LOG_LEVEL", "info"),
			ShutdownTimeout: getduration("COURSEFLOW_SHUTDOWN_TIMEOUT", 15*time.Second),
			Seed:            os.Getenv("COURSEFLOW_SEED") == "true",
		},
		Postgres: Postgres{
			URL: os.Getenv("COURSEFLOW_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("COURSEFLOW_REDIS_URL"),
			PoolSize:     getint("COURSEFLOW_REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("COURSEFLOW_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("COURSEFLOW_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("COURSEFLOW_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("COURSEFLOW_REDIS_WRITE_TIMEOUT", 3*time.Second),
			SummaryTTL:   getduration("COURSEFLOW_SUMMARY_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("COURSEFLOW_KAFKA_BROKERS")),
			Topic:   getenv("COURSEFLOW_KAFKA_AUDIT_TOPIC", "courseflow.audit"),
		},
		Auth: Auth{
			// The default only exists so a fresh checkout runs; override
			// it anywhere that matters.
			JWTSigningKey: getenv("COURSEFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getenv("COURSEFLOW_JWT_ISSUER", "courseflow"),
			Audience:      getenv("COURSEFLOW_JWT_AUDIENCE", "courseflow-api"),
			TokenTTL:      getduration("COURSEFLOW_JWT_TTL", time.Hour),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// splitNonEmpty turns a comma-separated list into a clean slice, dropping
// blanks and repeats.
func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(s, ","))
}
