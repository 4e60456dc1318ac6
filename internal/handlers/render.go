package handlers

import (
	"net/http"

	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Renderer writes HTML pages and redirects carrying flash notifications.
type Renderer struct {
	sessions *session.Manager
	log      *zap.Logger
}

func NewRenderer(sessions *session.Manager, log *zap.Logger) *Renderer {
	return &Renderer{sessions: sessions, log: log}
}

// HTML renders name with the pending flashes followed by inline ones, which
// belong to this response only.
func (r *Renderer) HTML(c *gin.Context, status int, name string, data gin.H, inline ...session.Flash) {
	if data == nil {
		data = gin.H{}
	}

	var flashes []session.Flash
	if sess := middleware.SessionFrom(c); sess != nil {
		pending, err := r.sessions.Flashes(c.Request.Context(), sess)
		if err != nil {
			r.log.Warn("failed to clear flashes", zap.Error(err))
		}
		flashes = append(flashes, pending...)
	}
	flashes = append(flashes, inline...)

	data["Flashes"] = flashes
	data["User"] = middleware.UserFrom(c)
	data["RequestID"] = middleware.GetRequestID(c)
	c.HTML(status, name, data)
}

// Redirect stores a flash and answers 303 so the browser follows with a GET.
func (r *Renderer) Redirect(c *gin.Context, location string, kind session.FlashKind, message string) {
	if message != "" {
		if sess := middleware.SessionFrom(c); sess != nil {
			if err := r.sessions.AddFlash(c.Request.Context(), c.Writer, sess, kind, message); err != nil {
				r.log.Warn("failed to store flash", zap.Error(err))
			}
		}
	}
	c.Redirect(http.StatusSeeOther, location)
}

func (r *Renderer) NotFound(c *gin.Context) {
	r.HTML(c, http.StatusNotFound, "404.html", gin.H{"Title": "Página no encontrada"})
}

func (r *Renderer) ServerError(c *gin.Context) {
	r.HTML(c, http.StatusInternalServerError, "500.html", gin.H{"Title": "Error del servidor"})
}

func errorFlash(message string) session.Flash {
	return session.Flash{Kind: session.FlashError, Message: message}
}
