package identity

import (
	"context"
	"testing"
	"time"

	"github.com/openquill/platform/internal/app/auth"
	"github.com/openquill/platform/internal/app/storage/memory"
	apperrors "github.com/openquill/platform/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memory.New()
	tokens := auth.NewManager("test-secret", time.Hour)
	return New(store, store, tokens, nil)
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		t.Fatalf("expected service error with code %s, got %v", want, err)
	}
	if svcErr.Code != want {
		t.Fatalf("error code: got %s want %s", svcErr.Code, want)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "ada", Password: "longenough"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = svc.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "longenough"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = svc.Signup(ctx, SignupInput{Email: "ada@example.com", Username: "ada", Password: "short"})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestSignupThenLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	creds, err := svc.Signup(ctx, SignupInput{
		Email:    "Ada@Example.com",
		Username: "ada",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if creds.Token == "" {
		t.Fatal("signup returned empty token")
	}
	if creds.User.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", creds.User.Email)
	}
	if creds.User.PasswordHash == "correct horse" {
		t.Fatal("password stored in the clear")
	}

	// Duplicate email is a conflict.
	_, err = svc.Signup(ctx, SignupInput{Email: "ada@example.com", Username: "ada2", Password: "correct horse"})
	assertCode(t, err, apperrors.CodeConflict)

	login, err := svc.Login(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != creds.User.ID {
		t.Fatalf("login user: got %s want %s", login.User.ID, creds.User.ID)
	}

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assertCode(t, err, apperrors.CodeUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	creds, err := svc.Signup(ctx, SignupInput{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	userID, err := svc.Authenticate(ctx, creds.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != creds.User.ID {
		t.Fatalf("authenticate user: got %s want %s", userID, creds.User.ID)
	}

	_, err = svc.Authenticate(ctx, "not-a-token")
	assertCode(t, err, apperrors.CodeUnauthorized)

	if err := svc.Logout(ctx, creds.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// The token still verifies cryptographically but its session is gone.
	_, err = svc.Authenticate(ctx, creds.Token)
	assertCode(t, err, apperrors.CodeUnauthorized)

	// Logout of an already-revoked token is a no-op.
	if err := svc.Logout(ctx, creds.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}
