package config

import (
	"os"
	"testing"
)

// unset clears an environment variable for the test while keeping the
// t.Setenv restore semantics.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadServerDefaults(t *testing.T) {
	unset(t, "SERVER_ADDR", "REDIS_ADDR", "NATS_URL", "LOG_MODE")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr: want=%q got=%q", ":8080", cfg.Addr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr: want=%q got=%q", "localhost:6379", cfg.RedisAddr)
	}
	if cfg.NatsURL != "nats://localhost:4222" {
		t.Fatalf("NatsURL: want=%q got=%q", "nats://localhost:4222", cfg.NatsURL)
	}
	if cfg.LogMode != "dev" {
		t.Fatalf("LogMode: want=%q got=%q", "dev", cfg.LogMode)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_MODE", "prod")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr: want=%q got=%q", ":9090", cfg.Addr)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("RedisAddr: want=%q got=%q", "redis:6379", cfg.RedisAddr)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB: want=3 got=%d", cfg.RedisDB)
	}
	if cfg.LogMode != "prod" {
		t.Fatalf("LogMode: want=%q got=%q", "prod", cfg.LogMode)
	}
}

func TestLoadArchiverDefaults(t *testing.T) {
	unset(t, "ARCHIVE_ADDR", "POSTGRES_URL", "NATS_URL")

	cfg, err := LoadArchiver()
	if err != nil {
		t.Fatalf("LoadArchiver: %v", err)
	}
	if cfg.Addr != ":8082" {
		t.Fatalf("Addr: want=%q got=%q", ":8082", cfg.Addr)
	}
	if cfg.PostgresURL == "" {
		t.Fatal("PostgresURL default missing")
	}
	if cfg.NatsURL != "nats://localhost:4222" {
		t.Fatalf("NatsURL: want=%q got=%q", "nats://localhost:4222", cfg.NatsURL)
	}
}
