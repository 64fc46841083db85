package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("OBJECT_STORE", "")
	t.Setenv("GENERATION_DISPLAY_TIMEOUT", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %s", cfg.Env)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %s", cfg.ObjectStoreType)
	}
	if cfg.GenerationDisplayTimeout != 90*time.Second {
		t.Fatalf("expected 90s display timeout, got %s", cfg.GenerationDisplayTimeout)
	}
	if !cfg.LocalStorePublicRead {
		t.Fatalf("expected public read enabled outside production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "firebase")
	t.Setenv("GENERATION_DISPLAY_TIMEOUT", "30s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("GENERATION_SERVICE_URL", "https://gen.example.com/")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %s", cfg.Env)
	}
	if cfg.ObjectStoreType != "gcs" {
		t.Fatalf("expected gcs, got %s", cfg.ObjectStoreType)
	}
	if cfg.GenerationDisplayTimeout != 30*time.Second {
		t.Fatalf("expected 30s, got %s", cfg.GenerationDisplayTimeout)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.GenerationServiceURL != "https://gen.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.GenerationServiceURL)
	}
	if cfg.LocalStorePublicRead {
		t.Fatalf("expected public read disabled in production")
	}
}

func TestGetDurationRejectsInvalid(t *testing.T) {
	t.Setenv("SIGNED_URL_TTL", "soon")
	if got := getDuration("SIGNED_URL_TTL", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestLoadEnvFilesKeepsProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CVB_TEST_A=file\nexport CVB_TEST_B=\"file\"\n# comment\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CVB_TEST_A", "process")
	t.Setenv("CVB_TEST_B", "")
	os.Unsetenv("CVB_TEST_B")

	loadEnvFiles(path)

	if got := os.Getenv("CVB_TEST_A"); got != "process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("CVB_TEST_B"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
