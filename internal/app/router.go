package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/web"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const loginRequiredMessage = "Debes iniciar sesión primero"

func (a *App) router(auth services.AuthService) (*gin.Engine, error) {
	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(templates)
	r.Use(
		middleware.RequestID(),
		middleware.Logging(a.log.Named("http")),
		middleware.RecoveryWithLog(a.log, a.render.ServerError),
		a.metrics.Middleware(),
	)

	monitor := r.Group("/", a.corsPolicy())
	monitor.GET("/healthz", a.health.Handler())
	monitor.GET("/metrics", a.metrics.Handler())

	pages := r.Group("/", middleware.Sessions(a.sessions), middleware.CurrentUser(a.sessions, auth, a.log))

	public := pages.Group("/")
	if a.limiter != nil {
		public.Use(a.limiter.Middleware(a.auth.TooManyAttempts))
	}
	public.GET("/login", a.auth.LoginForm)
	public.POST("/login", a.auth.Login)
	public.GET("/register", a.auth.RegisterForm)
	public.POST("/register", a.auth.Register)

	private := pages.Group("/", middleware.RequireUser(a.sessions, loginRequiredMessage))
	private.GET("/logout", a.auth.Logout)
	private.GET("/", a.tasks.Index)
	private.GET("/crear", a.tasks.CreateForm)
	private.POST("/crear", a.tasks.Create)
	private.GET("/editar/:id", a.tasks.EditForm)
	private.POST("/editar/:id", a.tasks.Edit)
	private.POST("/toggle/:id", a.tasks.Toggle)
	private.POST("/eliminar/:id", a.tasks.Delete)
	private.GET("/actualizar-db", a.admin.ResetDatabase)

	r.NoRoute(middleware.Sessions(a.sessions), middleware.CurrentUser(a.sessions, auth, a.log), a.render.NotFound)
	return r, nil
}

// corsPolicy applies to the JSON monitoring endpoints only; the HTML pages
// are same-origin.
func (a *App) corsPolicy() gin.HandlerFunc {
	policy := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Accept", middleware.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(a.config.Server.AllowedOrigins) == 0 {
		policy.AllowAllOrigins = true
	} else {
		policy.AllowOrigins = a.config.Server.AllowedOrigins
	}
	return cors.New(policy)
}
