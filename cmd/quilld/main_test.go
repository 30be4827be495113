package main

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestIntEnvParsesValue(t *testing.T) {
	t.Setenv("QUILL_TEST_INT", "42")
	got := intEnv("QUILL_TEST_INT", 7)
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestIntEnvFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("QUILL_TEST_INT_BAD", "not-a-number")
	got := intEnv("QUILL_TEST_INT_BAD", 7)
	if got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestDurationEnvParsesValue(t *testing.T) {
	t.Setenv("QUILL_TEST_DURATION", "150ms")
	got := durationEnv("QUILL_TEST_DURATION", time.Second)
	if got != 150*time.Millisecond {
		t.Fatalf("expected 150ms, got %s", got)
	}
}

func TestEnvHelpersUseFallbackWhenUnset(t *testing.T) {
	_ = os.Unsetenv("QUILL_TEST_INT_UNSET")
	_ = os.Unsetenv("QUILL_TEST_DURATION_UNSET")

	if got := intEnv("QUILL_TEST_INT_UNSET", 9); got != 9 {
		t.Fatalf("expected fallback 9, got %d", got)
	}
	if got := durationEnv("QUILL_TEST_DURATION_UNSET", 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected fallback 3s, got %s", got)
	}
}

func TestStorageProfileDSNFromEnv(t *testing.T) {
	t.Setenv("QUILL_BACKEND_PROFILE", "memory")
	dsn, err := storageProfileDSNFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "memory://" {
		t.Fatalf("expected memory dsn, got %q", dsn)
	}

	t.Setenv("QUILL_BACKEND_PROFILE", "durable-local")
	t.Setenv("QUILL_DATA_DIR", "/var/lib/quill")
	dsn, err = storageProfileDSNFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dsn, "file://") || !strings.HasSuffix(dsn, "state.json") {
		t.Fatalf("unexpected durable-local dsn: %q", dsn)
	}

	t.Setenv("QUILL_BACKEND_PROFILE", "production")
	t.Setenv("QUILL_PRODUCTION_DSN", "")
	t.Setenv("QUILL_POSTGRES_DSN", "")
	if _, err := storageProfileDSNFromEnv(); err == nil {
		t.Fatalf("expected error for production profile without dsn")
	}

	t.Setenv("QUILL_POSTGRES_DSN", "postgres://quill@localhost/quill")
	dsn, err = storageProfileDSNFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "postgres://quill@localhost/quill" {
		t.Fatalf("unexpected production dsn: %q", dsn)
	}

	t.Setenv("QUILL_BACKEND_PROFILE", "carrier-pigeon")
	if _, err := storageProfileDSNFromEnv(); err == nil {
		t.Fatalf("expected error for unsupported profile")
	}
}
