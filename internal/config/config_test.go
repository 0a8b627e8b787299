package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_PROVIDER", "STORAGE_BACKEND", "STORAGE_PATH", "DELIVERY_DELAY", "COMPLETION_TIMEOUT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderGemini || cfg.AI.GeminiModel != "gemini-1.5-flash" {
		t.Fatalf("unexpected AI defaults %+v", cfg.AI)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.Path != "data/ally.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Session.DeliveryDelay != time.Second || cfg.Session.CompletionTimeout != time.Minute {
		t.Fatalf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.Log.Level != zapcore.InfoLevel {
		t.Fatalf("unexpected log level %v", cfg.Log.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_PROVIDER", "Remote")
	t.Setenv("COMPLETION_URL", "http://localhost:3000/api/chat")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DELIVERY_DELAY", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || len(cfg.Server.AllowedOrigins) != 2 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.AI.Provider != ProviderRemote || cfg.AI.RemoteURL == "" {
		t.Fatalf("unexpected AI config %+v", cfg.AI)
	}
	if cfg.Storage.Backend != BackendRedis || cfg.Storage.RedisDB != 2 {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Session.DeliveryDelay != 250*time.Millisecond {
		t.Fatalf("unexpected delivery delay %v", cfg.Session.DeliveryDelay)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"AI_PROVIDER":        "openai",
		"STORAGE_BACKEND":    "postgres",
		"COMPLETION_TIMEOUT": "-1s",
		"LOG_LEVEL":          "loud",
		"ARK_TEMPERATURE":    "warm",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}

	t.Run("remote without url", func(t *testing.T) {
		t.Setenv("AI_PROVIDER", "remote")
		t.Setenv("COMPLETION_URL", "")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for remote provider without URL")
		}
	})
}

func TestStorageOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, cfg := range []StorageConfig{
		{Backend: BackendMemory},
		{Backend: BackendFile, Path: filepath.Join(dir, "kv.json")},
		{Backend: BackendSQLite, Path: filepath.Join(dir, "kv.db")},
	} {
		store, err := cfg.Open()
		if err != nil {
			t.Fatalf("%s: Open err: %v", cfg.Backend, err)
		}
		if err := store.Set(ctx, "k", "v"); err != nil {
			t.Fatalf("%s: Set err: %v", cfg.Backend, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("%s: Close err: %v", cfg.Backend, err)
		}
	}

	if _, err := (StorageConfig{Backend: "tape"}).Open(); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	if _, err := (AIConfig{}).NewChatModel(context.Background()); err == nil {
		t.Fatal("expected missing credentials error")
	}
}
