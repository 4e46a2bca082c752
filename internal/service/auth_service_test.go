package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/domain"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

func TestAuthRegisterLoginAndPromote(t *testing.T) {
	env := newTestEnv(t, &recordingSender{})
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		env.stores.Users, zap.NewNop())
	ctx := context.Background()

	user, token, _, err := svc.Register(ctx, "Person@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" || user.Role != domain.RoleUser || user.Email != "person@example.com" {
		t.Fatalf("unexpected registration %+v", user)
	}
	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil || claims.Subject != user.ID {
		t.Fatalf("token subject = %v (%v)", claims, err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{name: "duplicate email", email: "person@example.com", password: "another pass", wantCode: apperrors.CodeConflict},
		{name: "invalid email", email: "not-an-email", password: "long enough", wantCode: apperrors.CodeValidation},
		{name: "short password", email: "new@example.com", password: "short", wantCode: apperrors.CodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := svc.Register(ctx, tc.email, tc.password)
			if got := apperrors.CodeOf(err); got != tc.wantCode {
				t.Fatalf("code = %q (err %v), want %q", got, err, tc.wantCode)
			}
		})
	}

	if _, _, _, err := svc.Login(ctx, "person@example.com", "wrong password"); apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "nobody@example.com", "whatever"); apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "person@example.com", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	promoted, err := svc.SetRole(ctx, "person@example.com", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !promoted.IsAdmin() {
		t.Fatalf("user should be admin")
	}
	current, err := svc.CurrentUser(ctx, user.ID)
	if err != nil || !current.IsAdmin() {
		t.Fatalf("role not persisted: %+v (%v)", current, err)
	}
	if _, err := svc.SetRole(ctx, "person@example.com", "owner"); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
}
