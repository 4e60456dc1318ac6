package handlers

import (
	"errors"
	"net/http"

	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	*Renderer
	authService services.AuthService
	sessions    *session.Manager
	log         *zap.Logger
}

func NewAuthHandler(renderer *Renderer, authService services.AuthService, sessions *session.Manager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Renderer: renderer, authService: authService, sessions: sessions, log: log}
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	h.HTML(c, http.StatusOK, "login.html", gin.H{"Title": "Iniciar sesión", "Username": ""})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.authService.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		message := "Error al iniciar sesión"
		switch {
		case errors.Is(err, services.ErrAuthFailure):
			message = "Usuario o contraseña incorrectos"
		case errors.Is(err, services.ErrInactiveUser):
			message = "Tu cuenta está desactivada"
		default:
			h.log.Error("login failed", zap.Error(err))
		}
		h.HTML(c, http.StatusOK, "login.html", gin.H{"Title": "Iniciar sesión", "Username": username}, errorFlash(message))
		return
	}

	if err := h.sessions.Start(c.Request.Context(), c.Writer, middleware.SessionFrom(c), user.ID, user.Username); err != nil {
		h.log.Error("failed to start session", zap.Uint("user_id", user.ID), zap.Error(err))
		h.HTML(c, http.StatusOK, "login.html", gin.H{"Title": "Iniciar sesión", "Username": username},
			errorFlash("No se pudo iniciar la sesión. Inténtalo de nuevo."))
		return
	}

	h.log.Info("user logged in", zap.Uint("user_id", user.ID))
	h.Redirect(c, "/", session.FlashSuccess, "Inicio de sesión exitoso")
}

func (h *AuthHandler) RegisterForm(c *gin.Context) {
	h.HTML(c, http.StatusOK, "register.html", gin.H{"Title": "Registro", "Username": ""})
}

func (h *AuthHandler) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	_, err := h.authService.Register(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateUser) {
			h.Redirect(c, "/register", session.FlashError, "El usuario ya existe")
			return
		}
		if verr, ok := services.IsValidation(err); ok {
			h.HTML(c, http.StatusOK, "register.html", gin.H{"Title": "Registro", "Username": username}, errorFlash(verr.Message))
			return
		}
		h.log.Error("registration failed", zap.Error(err))
		h.HTML(c, http.StatusOK, "register.html", gin.H{"Title": "Registro", "Username": username},
			errorFlash("No se pudo completar el registro"))
		return
	}

	h.Redirect(c, "/login", session.FlashSuccess, "Usuario registrado exitosamente. Ahora puedes iniciar sesión.")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if err := h.sessions.End(c.Request.Context(), c.Writer, sess); err != nil {
		h.log.Warn("failed to end session", zap.Error(err))
	}
	h.Redirect(c, "/login", session.FlashSuccess, "Sesión cerrada exitosamente")
}

// TooManyAttempts answers a throttled login or registration.
func (h *AuthHandler) TooManyAttempts(c *gin.Context) {
	page, title := "login.html", "Iniciar sesión"
	if c.FullPath() == "/register" {
		page, title = "register.html", "Registro"
	}
	h.HTML(c, http.StatusTooManyRequests, page, gin.H{"Title": title, "Username": c.PostForm("username")},
		errorFlash("Demasiados intentos. Espera un momento e inténtalo de nuevo."))
}
