package services

import (
	"github.com/Pilar-d/pendientesd/internal/models"
)

const PermResetSchema = "reset_schema"

type AuthorizationService interface {
	AuthorizeTask(userID uint, task *models.Task) error
	AuthorizeSchemaReset(user *models.User) error
}

type AuthorizationServiceImpl struct {
	allowSchemaReset bool
}

// NewAuthorizationService lets any signed-in user reset the schema when
// allowSchemaReset is set; otherwise only superusers may.
func NewAuthorizationService(allowSchemaReset bool) *AuthorizationServiceImpl {
	return &AuthorizationServiceImpl{allowSchemaReset: allowSchemaReset}
}

// AuthorizeTask only lets the owner read or change a task.
func (s *AuthorizationServiceImpl) AuthorizeTask(userID uint, task *models.Task) error {
	if task == nil || task.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *AuthorizationServiceImpl) AuthorizeSchemaReset(user *models.User) error {
	if user == nil {
		return ErrForbidden
	}
	if s.allowSchemaReset || user.HasPerm(PermResetSchema) {
		return nil
	}
	return ErrForbidden
}
