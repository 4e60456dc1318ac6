package middleware

import (
	"net/http"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionKey = "session"
	userKey    = "user"
)

// Sessions loads the request's session. Handlers always find one, anonymous
// if need be.
func Sessions(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(sessionKey, manager.Load(c.Request.Context(), c.Request))
		c.Next()
	}
}

// CurrentUser resolves the signed-in user. A session whose user is gone,
// disabled or renamed is ended.
func CurrentUser(manager *session.Manager, auth services.AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil || !sess.Authenticated() {
			c.Next()
			return
		}

		user, err := auth.CurrentUser(c.Request.Context(), sess.UserID)
		if err == nil && user.Username == sess.Username {
			c.Set(userKey, user)
			c.Next()
			return
		}

		if err != nil {
			log.Info("dropping session", zap.Uint("user_id", sess.UserID), zap.Error(err))
		} else {
			log.Info("dropping session of replaced user", zap.Uint("user_id", sess.UserID))
		}
		if endErr := manager.End(c.Request.Context(), c.Writer, sess); endErr != nil {
			log.Warn("failed to end session", zap.Error(endErr))
		}
		c.Next()
	}
}

// RequireUser sends anonymous visitors to the login page.
func RequireUser(manager *session.Manager, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserFrom(c) != nil {
			c.Next()
			return
		}
		if sess := SessionFrom(c); sess != nil && message != "" {
			_ = manager.AddFlash(c.Request.Context(), c.Writer, sess, session.FlashError, message)
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

func SessionFrom(c *gin.Context) *session.Session {
	if value, ok := c.Get(sessionKey); ok {
		if sess, ok := value.(*session.Session); ok {
			return sess
		}
	}
	return nil
}

func UserFrom(c *gin.Context) *models.User {
	if value, ok := c.Get(userKey); ok {
		if user, ok := value.(*models.User); ok {
			return user
		}
	}
	return nil
}
