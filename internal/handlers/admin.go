package handlers

import (
	"errors"

	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the destructive maintenance routes.
type AdminHandler struct {
	*Renderer
	maintenance services.MaintenanceService
	sessions    *session.Manager
	log         *zap.Logger
}

func NewAdminHandler(renderer *Renderer, maintenance services.MaintenanceService, sessions *session.Manager, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Renderer: renderer, maintenance: maintenance, sessions: sessions, log: log}
}

// ResetDatabase drops every user and task, then sends the caller to
// registration.
// Requests the browser marks as cross-site are refused, since the route is a
// GET and the session cookie is SameSite=Lax.
func (h *AdminHandler) ResetDatabase(c *gin.Context) {
	user := middleware.UserFrom(c)

	if c.GetHeader("Sec-Fetch-Site") == "cross-site" {
		h.log.Warn("cross-site schema reset refused", zap.Uint("user_id", user.ID), zap.String("referer", c.Request.Referer()))
		h.Redirect(c, "/", session.FlashError, "No tienes permisos para reinicializar la base de datos")
		return
	}

	if err := h.maintenance.ResetSchema(c.Request.Context(), user); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			h.Redirect(c, "/", session.FlashError, "No tienes permisos para reinicializar la base de datos")
			return
		}
		h.log.Error("schema reset failed", zap.Uint("user_id", user.ID), zap.Error(err))
		_ = c.Error(err)
		h.Redirect(c, "/", session.FlashError, "Error al actualizar la base de datos")
		return
	}

	if err := h.sessions.End(c.Request.Context(), c.Writer, middleware.SessionFrom(c)); err != nil {
		h.log.Warn("failed to end session", zap.Error(err))
	}
	h.Redirect(c, "/register", session.FlashSuccess, "Base de datos actualizada correctamente. Por favor, regístrate nuevamente.")
}
