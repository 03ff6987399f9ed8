// Package identity handles signup, login, logout and request authentication.
// Tokens are HS256 JWTs backed by server-side session rows, so logout revokes
// a token before its expiry.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/openquill/platform/internal/app/auth"
	"github.com/openquill/platform/internal/app/domain/session"
	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

// Service implements the identity operations.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	tokens   *auth.Manager
	log      *logger.Logger
}

// New creates the identity service.
func New(users storage.UserStore, sessions storage.SessionStore, tokens *auth.Manager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return &Service{users: users, sessions: sessions, tokens: tokens, log: log}
}

// SignupInput is the caller-supplied profile for a new account.
type SignupInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Bio       string
}

// Credentials is the result of a successful signup or login.
type Credentials struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Signup registers a user and issues a token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Credentials, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	if in.Email == "" {
		return Credentials{}, apperrors.Validation("email is required")
	}
	if in.Username == "" {
		return Credentials{}, apperrors.Validation("username is required")
	}
	if len(in.Password) < 8 {
		return Credentials{}, apperrors.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Credentials{}, apperrors.Internal("hash password", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Bio:          in.Bio,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Credentials{}, apperrors.Conflict("email or username already in use")
		}
		return Credentials{}, err
	}

	s.log.WithContext(ctx).WithField("username", created.Username).Info("user signed up")
	return s.issue(ctx, created)
}

// Login verifies credentials by email and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Credentials{}, apperrors.Validation("email and password are required")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Credentials{}, apperrors.Unauthorized("invalid credentials")
		}
		return Credentials{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Credentials{}, apperrors.Unauthorized("invalid credentials")
	}

	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u user.User) (Credentials, error) {
	token, sid, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return Credentials{}, apperrors.Internal("issue token", err)
	}

	_, err = s.sessions.CreateSession(ctx, session.Session{
		SID:       sid,
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(s.tokens.TTL()),
	})
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token to a user id. The token must verify
// and its session row must still exist and be unexpired.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return "", apperrors.Unauthorized("invalid token")
	}

	sess, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.Unauthorized("session revoked")
		}
		return "", err
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.sessions.DeleteSession(ctx, sess.SID)
		return "", apperrors.Unauthorized("session expired")
	}
	return claims.UserID, nil
}

// Logout revokes the session behind a token. Already-revoked tokens are a
// no-op.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return apperrors.Unauthorized("invalid token")
	}
	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// PurgeExpiredSessions removes session rows past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, time.Now().UTC())
}
