package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("INVEX_ACCESS_TOKEN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AccessToken != "" {
		t.Fatalf("expected empty INVEX_ACCESS_TOKEN when unset, got %q", cfg.AccessToken)
	}
}

func TestLoadSyncDefaults(t *testing.T) {
	for _, key := range []string{"SYNC_DEBOUNCE_MS", "SYNC_ECHO_WINDOW_MS", "SYNC_STALENESS_SECONDS", "SYNC_CONFIRM_TIMEOUT_SECONDS", "SYNC_AUTO"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.SyncDebounce != 300*time.Millisecond {
		t.Fatalf("expected 300ms debounce, got %s", cfg.SyncDebounce)
	}
	if cfg.SyncEchoWindow != 5*time.Second {
		t.Fatalf("expected 5s echo window, got %s", cfg.SyncEchoWindow)
	}
	if cfg.SyncStaleness != time.Minute {
		t.Fatalf("expected 1m staleness, got %s", cfg.SyncStaleness)
	}
	if cfg.SyncConfirmTimeout != 30*time.Second {
		t.Fatalf("expected 30s confirm timeout, got %s", cfg.SyncConfirmTimeout)
	}
	if cfg.SyncAuto {
		t.Fatalf("expected auto-sync off by default")
	}
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("SYNC_DEBOUNCE_MS", "-5")
	t.Setenv("SYNC_CONFIRM_TIMEOUT_SECONDS", "soon")
	t.Setenv("SYNC_AUTO", "true")

	cfg := Load()
	if cfg.SyncDebounce != 300*time.Millisecond {
		t.Fatalf("expected fallback debounce, got %s", cfg.SyncDebounce)
	}
	if cfg.SyncConfirmTimeout != 30*time.Second {
		t.Fatalf("expected fallback confirm timeout, got %s", cfg.SyncConfirmTimeout)
	}
	if !cfg.SyncAuto {
		t.Fatalf("expected auto-sync enabled")
	}
}

func TestLoadLocalDataDirIsTrimmed(t *testing.T) {
	t.Setenv("LOCAL_DATA_DIR", "  /var/lib/invex  ")

	if got := Load().LocalDataDir; got != "/var/lib/invex" {
		t.Fatalf("expected trimmed LOCAL_DATA_DIR, got %q", got)
	}
}
