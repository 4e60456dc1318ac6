// Package app builds the application context: configuration, database,
// session store, services and the HTTP engine. Nothing here is global, so
// tests can create as many instances as they need.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pilar-d/pendientesd/internal/config"
	"github.com/Pilar-d/pendientesd/internal/database"
	"github.com/Pilar-d/pendientesd/internal/handlers"
	"github.com/Pilar-d/pendientesd/internal/logger"
	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/monitoring"
	"github.com/Pilar-d/pendientesd/internal/repositories"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	seedUsername = "admin"
	seedPassword = "admin123"
)

type App struct {
	config   *config.Config
	log      *zap.Logger
	pool     *database.DatabasePool
	sessions *session.Manager
	metrics  *monitoring.Metrics
	health   *monitoring.HealthChecker
	limiter  *middleware.LoginRateLimiter
	engine   *gin.Engine

	auth   *handlers.AuthHandler
	tasks  *handlers.TaskHandler
	admin  *handlers.AdminHandler
	render *handlers.Renderer

	closers []func() error
}

// New opens the database, brings the schema up to date and wires every
// component. The returned App owns its connections until Close.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{config: cfg, log: log}

	poolConfig := database.PoolConfigFrom(cfg.Database)
	poolConfig.Logger = logger.Gorm(log, gormlogger.Warn)
	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	schema := database.NewSchema(pool.DB, log.Named("schema"))
	state, err := schema.Ensure(ctx, cfg.Database.ResetOnDrift)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	log.Info("database ready",
		zap.String("state", state.String()),
		zap.Bool("postgres", cfg.IsPostgres()))

	store, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.sessions = session.NewManager(store, session.Options{
		CookieName: cfg.Session.CookieName,
		SecretKey:  cfg.Session.SecretKey,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	}, log.Named("session"))

	users := repositories.NewUserRepository(pool.DB)
	taskRepo := repositories.NewTaskRepository(pool.DB)
	hasher := services.NewPasswordHasher(cfg.Auth.BCryptCost)
	authz := services.NewAuthorizationService(cfg.Database.AllowSchemaReset)

	authService := services.NewAuthService(users, hasher, log.Named("auth"))
	taskService := services.NewTaskService(pool.DB, taskRepo, authz, log.Named("tasks"))
	queryService := services.NewTaskQueryService(taskRepo)
	maintenance := services.NewMaintenanceService(schema, authz, cfg.Database.ResetOnDrift, log.Named("maintenance"))

	if cfg.Database.SeedAdmin && (state == database.StateCreated || state == database.StateReset) {
		a.seedAdmin(ctx, authService)
	}

	a.render = handlers.NewRenderer(a.sessions, log)
	a.auth = handlers.NewAuthHandler(a.render, authService, a.sessions, log)
	a.tasks = handlers.NewTaskHandler(a.render, taskService, queryService, maintenance, a.sessions, log)
	a.admin = handlers.NewAdminHandler(a.render, maintenance, a.sessions, log)

	a.metrics = monitoring.NewMetrics()
	a.metrics.RegisterStats("database", pool.Stats)
	if redisStore, ok := store.(*session.RedisStore); ok {
		a.metrics.RegisterStats("session_store", redisStore.Stats)
	}
	a.health = monitoring.NewHealthChecker(0)
	a.health.Register("database", pool.HealthContext)
	a.health.Register("session_store", a.sessions.Store().Ping)

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewLoginRateLimiter(cfg.RateLimit)
	}

	engine, err := a.router(authService)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	if a.config.Session.Store != config.SessionStoreRedis {
		return session.NewDBStore(ctx, a.pool.DB)
	}

	client, err := session.NewRedisClient(a.config)
	if err != nil {
		return nil, err
	}
	store := session.NewRedisStore(client, session.NewBreaker(session.DefaultBreakerConfig()))
	a.closers = append(a.closers, store.Close)

	if err := store.Ping(ctx); err != nil {
		a.log.Warn("redis not reachable at startup, sessions will fail until it is", zap.Error(err))
	}
	return store, nil
}

func (a *App) seedAdmin(ctx context.Context, auth services.AuthService) {
	_, err := auth.Register(ctx, seedUsername, seedPassword)
	switch {
	case err == nil:
		a.log.Info("seeded default user", zap.String("username", seedUsername))
	case errors.Is(err, services.ErrDuplicateUser):
	default:
		a.log.Warn("failed to seed default user", zap.Error(err))
	}
}

// Handler is the HTTP entry point.
func (a *App) Handler() *gin.Engine {
	return a.engine
}

// Close releases the session store and the database, in reverse order of
// acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
