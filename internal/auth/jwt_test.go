package auth_test

import (
	"testing"
	"time"

	"github.com/swiftloan/api/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	m := auth.NewManager("test-secret", 7*24*time.Hour)

	raw, err := m.GenerateToken("user-1", "jane@example.com", "admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("got userID %q, want %q", claims.UserID, "user-1")
	}
	if claims.Email != "jane@example.com" {
		t.Errorf("got email %q, want %q", claims.Email, "jane@example.com")
	}
	if claims.Role != "admin" {
		t.Errorf("got role %q, want %q", claims.Role, "admin")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := auth.NewManager("secret-a", time.Hour)
	verifier := auth.NewManager("secret-b", time.Hour)

	raw, err := issuer.GenerateToken("user-1", "jane@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := verifier.VerifyToken(raw); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := auth.NewManager("test-secret", -time.Minute)

	raw, err := m.GenerateToken("user-1", "jane@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyToken(raw); err == nil {
		t.Fatal("expected verification to fail for expired token")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	if _, err := m.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected verification to fail for malformed token")
	}
}
