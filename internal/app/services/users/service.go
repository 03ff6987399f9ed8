// Package users exposes profile reads and updates.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

// Service implements user profile operations.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New creates the users service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperrors.NotFound("user not found")
	}
	return u, err
}

// GetByUsername returns a user by their unique username.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperrors.NotFound("user not found")
	}
	return u, err
}

// ProfileUpdate carries optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username        *string
	FirstName       *string
	LastName        *string
	Bio             *string
	ProfileImageURL *string
	IsWriter        *bool
}

// UpdateProfile applies a partial profile update to the given user.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return user.User{}, apperrors.Validation("username cannot be empty")
		}
		u.Username = username
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfileImageURL != nil {
		u.ProfileImageURL = *upd.ProfileImageURL
	}
	if upd.IsWriter != nil {
		u.IsWriter = *upd.IsWriter
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return user.User{}, apperrors.Conflict("username already in use")
	}
	return updated, err
}
