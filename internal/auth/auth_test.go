package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("0123456789abcdef0123456789abcdef", "")
	token, err := v.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	session, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", session.UserID)
	}
}

func TestVerifierRejectsForeignSecret(t *testing.T) {
	issuer := NewVerifier("0123456789abcdef0123456789abcdef", "")
	token, err := issuer.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other := NewVerifier("fedcba9876543210fedcba9876543210", "")
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("0123456789abcdef0123456789abcdef", "")
	token, err := v.Sign("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestRequireMatchesIdentity(t *testing.T) {
	ctx := WithSession(context.Background(), Session{UserID: "user-1"})

	if err := Require(ctx, "user-1"); err != nil {
		t.Fatalf("expected matching identity to pass, got %v", err)
	}
	if err := Require(ctx, "user-2"); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected mismatch to fail, got %v", err)
	}
	if err := Require(context.Background(), "user-1"); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected missing session to fail, got %v", err)
	}
}
