package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/config"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	filestore "github.com/dummy-intern104/invex-ai/internal/store/file"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}, "token"); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	if err := validateSecurityConfig(config.Config{AuthSecret: strongSecret}, ""); err == nil {
		t.Fatalf("expected missing token to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: strongSecret}, "token"); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestAuthenticateAttachesSession(t *testing.T) {
	cfg := config.Config{AuthSecret: strongSecret}
	token, err := signToken(cfg, "owner-9", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	ctx, session, _, err := authenticate(context.Background(), cfg, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != "owner-9" {
		t.Fatalf("expected owner-9, got %q", session.UserID)
	}
	if err := auth.Require(ctx, "owner-9"); err != nil {
		t.Fatalf("expected session in context, got %v", err)
	}

	if _, _, _, err := authenticate(context.Background(), config.Config{AuthSecret: strings.Repeat("x", 32)}, token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestPullFromMemoryGatewayPrintsEmptySnapshot(t *testing.T) {
	cfg := config.Config{AuthSecret: strongSecret}
	token, err := signToken(cfg, "owner-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	result, err := pull(context.Background(), cfg, token, true)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if result.Identity != "owner-1" {
		t.Fatalf("expected identity owner-1, got %q", result.Identity)
	}
	if result.Snapshot.Products == nil || len(result.Snapshot.Products) != 0 {
		t.Fatalf("expected empty products, got %#v", result.Snapshot.Products)
	}
}

func TestPullReadsLocalDataDir(t *testing.T) {
	dir := t.TempDir()
	seed, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	snap := domain.EmptySnapshot()
	snap.Products = []domain.Product{{ID: 2, Name: "Teh", PriceCents: 800, Stock: 6}}
	if err := seed.Save(auth.WithSession(context.Background(), auth.Session{UserID: "owner-4"}), "owner-4", snap); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := config.Config{AuthSecret: strongSecret, LocalDataDir: dir}
	token, err := signToken(cfg, "owner-4", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	result, err := pull(context.Background(), cfg, token, false)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(result.Snapshot.Products) != 1 || result.Snapshot.Products[0].Name != "Teh" {
		t.Fatalf("expected product persisted on disk, got %#v", result.Snapshot.Products)
	}
}

func TestTokenCommandPrintsVerifiableToken(t *testing.T) {
	t.Setenv("AUTH_SECRET", strongSecret)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", "owner-2", "--ttl", "5m"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	session, err := auth.NewVerifier(strongSecret, "").Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify printed token: %v", err)
	}
	if session.UserID != "owner-2" {
		t.Fatalf("expected owner-2, got %q", session.UserID)
	}
}

func TestPullCommandWritesJSON(t *testing.T) {
	t.Setenv("AUTH_SECRET", strongSecret)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOCAL_DATA_DIR", "")
	t.Setenv("REDIS_ADDR", "")
	token, err := signToken(config.Config{AuthSecret: strongSecret}, "owner-3", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"pull", "--token", token})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var decoded pullResult
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Identity != "owner-3" {
		t.Fatalf("expected owner-3, got %q", decoded.Identity)
	}
}
