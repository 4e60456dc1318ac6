package services

import (
	"errors"
	"fmt"

	"github.com/Pilar-d/pendientesd/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type PasswordHasher struct {
	cost int
}

// NewPasswordHasher falls back to bcrypt.DefaultCost for costs bcrypt would
// reject.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

// SetPassword stores a salted hash of plaintext on user.
func (h *PasswordHasher) SetPassword(user *models.User, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return newValidationError("password", "La contraseña es demasiado larga")
		}
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return nil
}

func (h *PasswordHasher) CheckPassword(user *models.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}
