package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/feedback-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	user := &domain.User{ID: "user-1", Role: domain.RoleAdmin}

	token, expiresAt, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("token already expired")
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != domain.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	user := &domain.User{ID: "user-1", Role: domain.RoleUser}
	token, _, err := NewTokenManager("one", 5).GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("two", 5).ParseToken(token); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired := NewTokenManager("one", 1)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("one", 1).ParseToken(old); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}
