package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/repositories"
	"go.uber.org/zap"
)

const maxUsernameLength = 80

// Register creates an active account. A taken username yields
// ErrDuplicateUser and no row is written.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, newValidationError("username", "El usuario es obligatorio")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, newValidationError("username", "El usuario no puede superar 80 caracteres")
	}
	if password == "" {
		return nil, newValidationError("password", "La contraseña es obligatoria")
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateUser
	}

	user := &models.User{Username: username, IsActive: true}
	if err := s.hasher.SetPassword(user, password); err != nil {
		return nil, err
	}

	// the unique index still guards against a concurrent registration
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}
