package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/repositories"
	"go.uber.org/zap"
)

type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Register(ctx context.Context, username, password string) (*models.User, error)
	CurrentUser(ctx context.Context, userID uint) (*models.User, error)
}

type AuthServiceImpl struct {
	users  *repositories.UserRepository
	hasher *PasswordHasher
	log    *zap.Logger
}

func NewAuthService(users *repositories.UserRepository, hasher *PasswordHasher, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, hasher: hasher, log: log}
}

// Authenticate returns ErrAuthFailure for an unknown username or a wrong
// password, and ErrInactiveUser for a disabled account.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.CheckPassword(user, password) {
		s.log.Info("failed login", zap.String("username", user.Username))
		return nil, ErrAuthFailure
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// CurrentUser resolves the user a session points at. Missing or disabled
// users are reported as ErrAuthFailure so the caller drops the session.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAuthFailure
	}
	return user, nil
}
