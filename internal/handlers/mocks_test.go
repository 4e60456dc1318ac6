package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Pilar-d/pendientesd/internal/handlers"
	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/Pilar-d/pendientesd/internal/web"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errDatabase = errors.New("database is locked")

type MockAuthService struct {
	users     map[uint]*models.User
	passwords map[string]string
	nextID    uint
	err       error
}

func newMockAuthService() *MockAuthService {
	return &MockAuthService{users: map[uint]*models.User{}, passwords: map[string]string{}, nextID: 1}
}

func (m *MockAuthService) add(username, password string) *models.User {
	user := &models.User{ID: m.nextID, Username: username, IsActive: true}
	m.nextID++
	m.users[user.ID] = user
	m.passwords[username] = password
	return user
}

func (m *MockAuthService) byName(username string) *models.User {
	for _, user := range m.users {
		if user.Username == username {
			return user
		}
	}
	return nil
}

func (m *MockAuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	user := m.byName(username)
	if user == nil || m.passwords[username] != password {
		return nil, services.ErrAuthFailure
	}
	if !user.IsActive {
		return nil, services.ErrInactiveUser
	}
	return user, nil
}

func (m *MockAuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if strings.TrimSpace(username) == "" {
		return nil, &services.ValidationError{Field: "username", Message: "El nombre de usuario es obligatorio"}
	}
	if m.byName(username) != nil {
		return nil, services.ErrDuplicateUser
	}
	return m.add(username, password), nil
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	user, ok := m.users[userID]
	if !ok || !user.IsActive {
		return nil, services.ErrAuthFailure
	}
	return user, nil
}

// MockTaskService enforces ownership the same way the real service does so
// handlers can be checked against foreign task ids.
type MockTaskService struct {
	tasks  map[uint]*models.Task
	nextID uint
	err    error
}

func newMockTaskService() *MockTaskService {
	return &MockTaskService{tasks: map[uint]*models.Task{}, nextID: 1}
}

func (m *MockTaskService) add(userID uint, title string) *models.Task {
	task := &models.Task{ID: m.nextID, Title: title, Category: models.DefaultCategory, UserID: userID, CreatedAt: time.Now()}
	m.nextID++
	m.tasks[task.ID] = task
	return task
}

func (m *MockTaskService) owned(userID, taskID uint) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, services.ErrNotFound
	}
	if task.UserID != userID {
		return nil, services.ErrForbidden
	}
	return task, nil
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID uint, input services.TaskInput) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, &services.ValidationError{Field: "titulo", Message: "El título es obligatorio"}
	}
	return m.add(userID, input.Title), nil
}

func (m *MockTaskService) GetTask(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	return m.owned(userID, taskID)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, userID, taskID uint, input services.TaskInput) (*models.Task, error) {
	task, err := m.owned(userID, taskID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, &services.ValidationError{Field: "titulo", Message: "El título es obligatorio"}
	}
	task.Title = input.Title
	return task, nil
}

func (m *MockTaskService) ToggleTask(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	task, err := m.owned(userID, taskID)
	if err != nil {
		return nil, err
	}
	task.Completed = !task.Completed
	return task, nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	if _, err := m.owned(userID, taskID); err != nil {
		return err
	}
	delete(m.tasks, taskID)
	return nil
}

type MockQueryService struct {
	tasks *MockTaskService
	err   error
	last  services.TaskQuery
}

func (m *MockQueryService) ListTasks(ctx context.Context, userID uint, query services.TaskQuery, today time.Time) (*services.TaskListing, error) {
	m.last = query
	if m.err != nil {
		return nil, m.err
	}
	var tasks []models.Task
	for _, task := range m.tasks.tasks {
		if task.UserID == userID {
			tasks = append(tasks, *task)
		}
	}
	return &services.TaskListing{Tasks: tasks, Stats: services.ComputeStats(tasks, today), Query: query, Today: today}, nil
}

type MockMaintenanceService struct {
	resetErr   error
	resets     int
	recovered  bool
	recoverErr error
}

func (m *MockMaintenanceService) ResetSchema(ctx context.Context, actor *models.User) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets++
	return nil
}

func (m *MockMaintenanceService) RecoverFromQueryError(ctx context.Context, userID uint, cause error) (bool, error) {
	if m.recovered {
		return true, nil
	}
	if m.recoverErr != nil {
		return false, m.recoverErr
	}
	return false, cause
}

// client drives the router like a browser: cookies persist between requests
// and are dropped once the server expires them.
type client struct {
	t           *testing.T
	router      *gin.Engine
	manager     *session.Manager
	auth        *MockAuthService
	tasks       *MockTaskService
	query       *MockQueryService
	maintenance *MockMaintenanceService
	cookies     map[string]*http.Cookie
	header      http.Header
}

func setupClient(t *testing.T) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := session.NewRedisStore(rdb, session.NewBreaker(session.DefaultBreakerConfig()))
	manager := session.NewManager(store, session.Options{CookieName: "sid", SecretKey: "test", TTL: time.Hour}, zap.NewNop())

	templates, err := web.Templates()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	log := zap.NewNop()
	auth := newMockAuthService()
	tasks := newMockTaskService()
	query := &MockQueryService{tasks: tasks}
	maintenance := &MockMaintenanceService{}

	renderer := handlers.NewRenderer(manager, log)
	authHandler := handlers.NewAuthHandler(renderer, auth, manager, log)
	taskHandler := handlers.NewTaskHandler(renderer, tasks, query, maintenance, manager, log).
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local) })
	adminHandler := handlers.NewAdminHandler(renderer, maintenance, manager, log)

	router := gin.New()
	router.SetHTMLTemplate(templates)
	router.Use(middleware.Sessions(manager), middleware.CurrentUser(manager, auth, log))
	router.GET("/login", authHandler.LoginForm)
	router.POST("/login", authHandler.Login)
	router.GET("/register", authHandler.RegisterForm)
	router.POST("/register", authHandler.Register)

	private := router.Group("/", middleware.RequireUser(manager, "Debes iniciar sesión primero"))
	private.GET("/logout", authHandler.Logout)
	private.GET("/", taskHandler.Index)
	private.GET("/crear", taskHandler.CreateForm)
	private.POST("/crear", taskHandler.Create)
	private.GET("/editar/:id", taskHandler.EditForm)
	private.POST("/editar/:id", taskHandler.Edit)
	private.POST("/toggle/:id", taskHandler.Toggle)
	private.POST("/eliminar/:id", taskHandler.Delete)
	private.GET("/actualizar-db", adminHandler.ResetDatabase)
	router.NoRoute(renderer.NotFound)

	return &client{
		t:           t,
		router:      router,
		manager:     manager,
		auth:        auth,
		tasks:       tasks,
		query:       query,
		maintenance: maintenance,
		cookies:     map[string]*http.Cookie{},
		header:      http.Header{},
	}
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	for name, values := range c.header {
		req.Header[name] = values
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	c.absorb(w)
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, path, form)
}

func (c *client) absorb(w *httptest.ResponseRecorder) {
	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
}

// signIn starts a session for a fresh user without going through the form.
func (c *client) signIn(username string) *models.User {
	c.t.Helper()
	user := c.auth.add(username, "secret")

	sess := c.manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	if err := c.manager.Start(context.Background(), w, sess, user.ID, user.Username); err != nil {
		c.t.Fatalf("start session: %v", err)
	}
	c.absorb(w)
	return user
}

// follow requests the redirect target of w and returns the rendered page.
func (c *client) follow(w *httptest.ResponseRecorder) string {
	c.t.Helper()
	location := w.Header().Get("Location")
	if location == "" {
		c.t.Fatalf("expected a redirect, got status %d", w.Code)
	}
	return c.get(location).Body.String()
}
