package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks the keys a test asserts defaults for. getEnv treats empty
// as unset, so this shields the test from ambient shell values.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t,
		"APP_NAME", "APP_ENV", "APP_PORT", "HTTP_REQUEST_TIMEOUT_SECONDS",
		"POSTGRES_DSN", "POSTGRES_MAX_CONNS", "POSTGRES_RUN_MIGRATIONS",
		"REDIS_ADDR", "REDIS_DB", "LOG_LEVEL",
		"MONITOR_INTERVAL_MINUTES", "MONITOR_NOTIFY_TIMEOUT_SECONDS", "MONITOR_SWEEP_BATCH_SIZE",
		"NATS_URL", "NATS_SUBJECT_PREFIX",
		"ELASTICSEARCH_ADDRESSES", "ELASTICSEARCH_INDEX", "ROUTING_TABLE_PATH",
	)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.App.Name != "helpdesk-core" {
		t.Errorf("expected default app name, got %q", cfg.App.Name)
	}
	if cfg.App.Port != "8080" {
		t.Errorf("expected default port, got %q", cfg.App.Port)
	}
	if cfg.App.RequestTimeoutSeconds != 30 {
		t.Errorf("expected 30s request timeout, got %d", cfg.App.RequestTimeoutSeconds)
	}
	if cfg.Postgres.DSN != "" {
		t.Errorf("expected empty DSN, got %q", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 10 || !cfg.Postgres.RunMigrations {
		t.Errorf("unexpected postgres defaults %+v", cfg.Postgres)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" || cfg.Redis.DB != 0 {
		t.Errorf("unexpected redis defaults %+v", cfg.Redis)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("expected info level, got %q", cfg.Logger.Level)
	}
	if cfg.Monitor.IntervalMinutes != 5 || cfg.Monitor.SweepBatchSize != 500 {
		t.Errorf("unexpected monitor defaults %+v", cfg.Monitor)
	}
	if cfg.NATS.URL != "" || cfg.NATS.SubjectPrefix != "helpdesk.notifications" {
		t.Errorf("unexpected nats defaults %+v", cfg.NATS)
	}
	if len(cfg.Elasticsearch.Addresses) != 0 || cfg.Elasticsearch.Index != "kb_articles" {
		t.Errorf("unexpected elasticsearch defaults %+v", cfg.Elasticsearch)
	}
	if cfg.Routing.TablePath != "" {
		t.Errorf("expected empty routing table path, got %q", cfg.Routing.TablePath)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_HOST", "10.0.0.5")
	t.Setenv("POSTGRES_DSN", "postgres://helpdesk:secret@db:5432/helpdesk")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MONITOR_INTERVAL_MINUTES", "1")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("ELASTICSEARCH_ADDRESSES", " http://es1:9200, ,http://es2:9200 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := cfg.App.Addr(); got != "10.0.0.5:9090" {
		t.Errorf("expected overridden addr, got %q", got)
	}
	if cfg.Postgres.DSN == "" || cfg.Postgres.RunMigrations {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if got := cfg.Monitor.Interval(); got != time.Minute {
		t.Errorf("expected 1m interval, got %v", got)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("unexpected nats url %q", cfg.NATS.URL)
	}
	want := []string{"http://es1:9200", "http://es2:9200"}
	if len(cfg.Elasticsearch.Addresses) != len(want) {
		t.Fatalf("expected %d addresses, got %+v", len(want), cfg.Elasticsearch.Addresses)
	}
	for i, addr := range want {
		if cfg.Elasticsearch.Addresses[i] != addr {
			t.Errorf("address %d: expected %q, got %q", i, addr, cfg.Elasticsearch.Addresses[i])
		}
	}
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_DB") {
		t.Fatalf("expected REDIS_DB error, got %v", err)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("POSTGRES_MAX_CONNS", "lots")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "nope")
	t.Setenv("REDIS_DB", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("expected fallback max conns, got %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Postgres.RunMigrations {
		t.Error("expected fallback run-migrations true")
	}
}

func TestMonitorConfigClamps(t *testing.T) {
	m := MonitorConfig{IntervalMinutes: 0, NotifyTimeoutSeconds: 0}
	if got := m.Interval(); got != time.Minute {
		t.Errorf("expected one-minute floor, got %v", got)
	}
	if got := m.NotifyTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s default timeout, got %v", got)
	}

	m = MonitorConfig{IntervalMinutes: 10, NotifyTimeoutSeconds: 2}
	if got := m.Interval(); got != 10*time.Minute {
		t.Errorf("expected 10m interval, got %v", got)
	}
	if got := m.NotifyTimeout(); got != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", got)
	}
}

func TestAppConfigRequestTimeout(t *testing.T) {
	a := AppConfig{RequestTimeoutSeconds: 0}
	if got := a.RequestTimeout(); got != 0 {
		t.Errorf("expected zero timeout, got %v", got)
	}
	a.RequestTimeoutSeconds = 15
	if got := a.RequestTimeout(); got != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", got)
	}
}
