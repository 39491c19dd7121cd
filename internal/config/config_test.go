package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_DSN", "AMQP_URL", "REQUEST_QUEUE", "VERDICT_QUEUE",
		"HTTP_ADDR", "METRICS_ADDR", "DISPATCH_MAX_ATTEMPTS", "DISPATCH_BACKOFF_BASE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.RequestQueue != "transaction_accept" {
		t.Fatalf("expected default request queue, got %s", cfg.RequestQueue)
	}
	if cfg.VerdictQueue != "transaction_result" {
		t.Fatalf("expected default verdict queue, got %s", cfg.VerdictQueue)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %s", cfg.HTTPAddr)
	}
	if cfg.DispatchMaxAttempts != 5 {
		t.Fatalf("expected 5 dispatch attempts, got %d", cfg.DispatchMaxAttempts)
	}
	if cfg.DispatchBackoffBase != 200*time.Millisecond {
		t.Fatalf("expected 200ms backoff base, got %v", cfg.DispatchBackoffBase)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REQUEST_QUEUE", "verify_in")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "3")
	t.Setenv("DISPATCH_BACKOFF_BASE", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.RequestQueue != "verify_in" {
		t.Fatalf("expected overridden request queue, got %s", cfg.RequestQueue)
	}
	if cfg.DispatchMaxAttempts != 3 {
		t.Fatalf("expected 3 dispatch attempts, got %d", cfg.DispatchMaxAttempts)
	}
	if cfg.DispatchBackoffBase != time.Second {
		t.Fatalf("expected 1s backoff base, got %v", cfg.DispatchBackoffBase)
	}
}

func TestLoadBadNumericOverridesFallBack(t *testing.T) {
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "zero")
	t.Setenv("DISPATCH_BACKOFF_BASE", "-5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.DispatchMaxAttempts != 5 {
		t.Fatalf("expected fallback attempts, got %d", cfg.DispatchMaxAttempts)
	}
	if cfg.DispatchBackoffBase != 200*time.Millisecond {
		t.Fatalf("expected fallback backoff base, got %v", cfg.DispatchBackoffBase)
	}
}

func TestNormalizeConnectionStringSemicolonForm(t *testing.T) {
	got := normalizeConnectionString("Host=db;Port=5432;Database=settlement;Username=app;Password=secret;Timeout=5")
	want := "host=db port=5432 dbname=settlement user=app password=secret connect_timeout=5 sslmode=disable"
	if got != want {
		t.Fatalf("normalizeConnectionString mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestNormalizeConnectionStringKeywordFormUntouched(t *testing.T) {
	dsn := "host=db port=5432 dbname=settlement user=app sslmode=require"
	if got := normalizeConnectionString(dsn); got != dsn {
		t.Fatalf("keyword DSN must pass through, got %q", got)
	}
}
