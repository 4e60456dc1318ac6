package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Pilar-d/pendientesd/internal/app"
	"github.com/Pilar-d/pendientesd/internal/config"
	"github.com/Pilar-d/pendientesd/internal/database"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Database: config.DatabaseConfig{
			URL:          filepath.Join(t.TempDir(), "tareas.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Session: config.SessionConfig{
			Store:      config.SessionStoreDatabase,
			SecretKey:  "test-secret",
			TTL:        time.Hour,
			CookieName: "session",
		},
		Auth: config.AuthConfig{BCryptCost: bcrypt.MinCost},
	}
}

func start(t *testing.T, cfg *config.Config) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: server.URL, client: &http.Client{Jar: jar}}
}

// browser follows redirects and keeps cookies between requests.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return read(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (int, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return read(b.t, resp)
}

func read(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEndToEnd_TaskLifecycle(t *testing.T) {
	b := start(t, testConfig(t))

	status, page := b.post("/register", url.Values{"username": {"admin"}, "password": {"admin123"}})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Usuario registrado exitosamente")

	status, page = b.post("/login", url.Values{"username": {"admin"}, "password": {"admin123"}})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Inicio de sesión exitoso")

	status, page = b.post("/crear", url.Values{
		"titulo":       {"Pay bills"},
		"categoria":    {"work"},
		"fecha_limite": {"2099-01-01"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Tarea creada exitosamente")
	assert.Contains(t, page, "Pay bills")
	assert.Contains(t, page, `data-status="pending"`)
	assert.Contains(t, page, `<span class="category" data-category="work">Work</span>`)
	assert.Contains(t, page, "Fecha límite: 2099-01-01")
	assert.NotContains(t, page, "overdue-label")
	assert.Contains(t, page, `id="stat-pending">1<`)
	assert.Contains(t, page, `id="stat-overdue">0<`)

	status, page = b.post("/toggle/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Tarea marcada como completada")
	assert.Contains(t, page, `data-status="completed"`)
	assert.Contains(t, page, `id="stat-completed">1<`)

	status, page = b.get("/logout")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Sesión cerrada exitosamente")

	status, page = b.get("/")
	require.Equal(t, http.StatusOK, status, "redirected to the login page")
	assert.Contains(t, page, "Debes iniciar sesión primero")
}

func TestEndToEnd_UsersAreIsolated(t *testing.T) {
	cfg := testConfig(t)
	alice := start(t, cfg)

	alice.post("/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	alice.post("/login", url.Values{"username": {"alice"}, "password": {"pw"}})
	alice.post("/crear", url.Values{"titulo": {"Privada"}})

	// a second browser against the same database
	b := start(t, cfg)
	b.post("/register", url.Values{"username": {"bob"}, "password": {"pw"}})
	b.post("/login", url.Values{"username": {"bob"}, "password": {"pw"}})

	_, page := b.get("/")
	assert.NotContains(t, page, "Privada")

	_, page = b.post("/eliminar/1", nil)
	assert.Contains(t, page, "No tienes permisos para eliminar esta tarea")

	_, page = alice.get("/")
	assert.Contains(t, page, "Privada")
}

func TestSeedAdminOnFreshSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.SeedAdmin = true
	b := start(t, cfg)

	_, page := b.post("/login", url.Values{"username": {"admin"}, "password": {"admin123"}})
	assert.Contains(t, page, "Inicio de sesión exitoso")
}

func TestStartup_DriftWithoutResetFails(t *testing.T) {
	cfg := testConfig(t)

	pool, err := database.NewDatabasePool(&database.PoolConfig{DSN: cfg.Database.URL, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, pool.DB.Exec(`CREATE TABLE usuario (id INTEGER PRIMARY KEY, username TEXT, password_hash TEXT)`).Error)
	require.NoError(t, pool.DB.Exec(`CREATE TABLE tarea (id INTEGER PRIMARY KEY, titulo TEXT, usuario_id INTEGER)`).Error)
	require.NoError(t, pool.Close())

	_, err = app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, database.ErrSchemaDrift)

	cfg.Database.ResetOnDrift = true
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestResetDatabaseRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.AllowSchemaReset = true
	b := start(t, cfg)

	b.post("/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	b.post("/login", url.Values{"username": {"ana"}, "password": {"pw"}})
	b.post("/crear", url.Values{"titulo": {"Se perderá"}})

	status, page := b.get("/actualizar-db")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Base de datos actualizada correctamente")
	assert.Contains(t, page, `action="/register"`)

	_, page = b.post("/login", url.Values{"username": {"ana"}, "password": {"pw"}})
	assert.Contains(t, page, "Usuario o contraseña incorrectos")
}

func TestResetDatabaseRoute_Forbidden(t *testing.T) {
	b := start(t, testConfig(t))

	b.post("/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	b.post("/login", url.Values{"username": {"ana"}, "password": {"pw"}})
	b.post("/crear", url.Values{"titulo": {"Se conserva"}})

	_, page := b.get("/actualizar-db")
	assert.Contains(t, page, "No tienes permisos para reinicializar la base de datos")
	assert.Contains(t, page, "Se conserva")
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 1, CleanupInterval: time.Minute}
	b := start(t, cfg)

	status, _ := b.post("/login", url.Values{"username": {"x"}, "password": {"y"}})
	assert.Equal(t, http.StatusOK, status)

	status, page := b.post("/login", url.Values{"username": {"x"}, "password": {"y"}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, page, "Demasiados intentos")

	status, _ = b.get("/login")
	assert.Equal(t, http.StatusOK, status, "the form itself is never throttled")
}

func TestRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Store = config.SessionStoreRedis
	cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}
	b := start(t, cfg)

	b.post("/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	_, page := b.post("/login", url.Values{"username": {"ana"}, "password": {"pw"}})
	assert.Contains(t, page, "Inicio de sesión exitoso")
	assert.NotEmpty(t, mr.Keys())
}

func TestMonitoringEndpoints(t *testing.T) {
	b := start(t, testConfig(t))

	status, body := b.get("/healthz")
	require.Equal(t, http.StatusOK, status)

	var health struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health.Status)
	require.Len(t, health.Checks, 2)
	assert.Equal(t, "database", health.Checks[0].Name)
	assert.Equal(t, "session_store", health.Checks[1].Name)

	status, body = b.get("/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, `"application"`))

	var metrics struct {
		Stores map[string]map[string]interface{} `json:"stores"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &metrics))
	assert.Contains(t, metrics.Stores["database"], "open_connections")
	assert.NotContains(t, metrics.Stores, "session_store", "database sessions share the pool")
}

func TestMetrics_RedisStoreStats(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Store = config.SessionStoreRedis
	cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}
	b := start(t, cfg)

	status, body := b.get("/metrics")
	require.Equal(t, http.StatusOK, status)

	var metrics struct {
		Stores map[string]map[string]interface{} `json:"stores"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &metrics))
	assert.Contains(t, metrics.Stores["session_store"], "breaker")
	assert.Contains(t, metrics.Stores["session_store"], "pool_total")
}

func TestUnknownRoute(t *testing.T) {
	b := start(t, testConfig(t))

	status, page := b.get("/no-existe")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, page, "Página no encontrada")
}
