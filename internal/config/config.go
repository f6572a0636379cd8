package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Monitor       MonitorConfig
	NATS          NATSConfig
	Elasticsearch ElasticsearchConfig
	Routing       RoutingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// MonitorConfig controls the background SLA/escalation sweep.
type MonitorConfig struct {
	IntervalMinutes      int
	NotifyTimeoutSeconds int
	SweepBatchSize       int
}

// NATSConfig holds the outbound notification transport values. An empty URL
// disables the transport; notifications then go to the log-only sender.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// ElasticsearchConfig holds the knowledge search backend values. An empty
// address selects the in-memory article index.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// RoutingConfig points at the team routing table. An empty path keeps the
// embedded default table.
type RoutingConfig struct {
	TablePath string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-core"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Monitor: MonitorConfig{
			IntervalMinutes:      getEnvAsInt("MONITOR_INTERVAL_MINUTES", 5),
			NotifyTimeoutSeconds: getEnvAsInt("MONITOR_NOTIFY_TIMEOUT_SECONDS", 5),
			SweepBatchSize:       getEnvAsInt("MONITOR_SWEEP_BATCH_SIZE", 500),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "helpdesk.notifications"),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: splitList(os.Getenv("ELASTICSEARCH_ADDRESSES")),
			Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
			Index:     getEnv("ELASTICSEARCH_INDEX", "kb_articles"),
		},
		Routing: RoutingConfig{
			TablePath: os.Getenv("ROUTING_TABLE_PATH"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep cadence, clamped to a one-minute floor.
func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// NotifyTimeout bounds each outbound notification call.
func (m MonitorConfig) NotifyTimeout() time.Duration {
	if m.NotifyTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.NotifyTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
