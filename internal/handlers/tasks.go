package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Pilar-d/pendientesd/internal/database"
	"github.com/Pilar-d/pendientesd/internal/middleware"
	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/services"
	"github.com/Pilar-d/pendientesd/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dbErrorMessage = "Error en la base de datos. Por favor, contacta al administrador."

type TaskHandler struct {
	*Renderer
	taskService  services.TaskService
	queryService services.TaskQueryService
	maintenance  services.MaintenanceService
	sessions     *session.Manager
	log          *zap.Logger
	now          func() time.Time
}

func NewTaskHandler(
	renderer *Renderer,
	taskService services.TaskService,
	queryService services.TaskQueryService,
	maintenance services.MaintenanceService,
	sessions *session.Manager,
	log *zap.Logger,
) *TaskHandler {
	return &TaskHandler{
		Renderer:     renderer,
		taskService:  taskService,
		queryService: queryService,
		maintenance:  maintenance,
		sessions:     sessions,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the source of "today" used for overdue checks.
func (h *TaskHandler) WithClock(now func() time.Time) *TaskHandler {
	h.now = now
	return h
}

func (h *TaskHandler) Index(c *gin.Context) {
	user := middleware.UserFrom(c)
	query := services.TaskQuery{
		Search:   c.Query("q"),
		Category: c.Query("categoria"),
		Sort:     services.SortKey(c.DefaultQuery("orden", string(services.SortRecent))),
	}

	listing, err := h.queryService.ListTasks(c.Request.Context(), user.ID, query, h.now())
	if err != nil {
		h.recoverListing(c, user, err)
		return
	}

	views := make([]taskView, 0, len(listing.Tasks))
	for i := range listing.Tasks {
		views = append(views, newTaskView(&listing.Tasks[i], listing.Today))
	}

	h.HTML(c, http.StatusOK, "index.html", gin.H{
		"Title":       "Mis tareas",
		"Tasks":       views,
		"Stats":       listing.Stats,
		"Query":       listing.Query,
		"Today":       listing.Today.Format(models.DateLayout),
		"Categories":  categoryOptions(),
		"SortOptions": sortOptions,
	})
}

// recoverListing resets the schema only when the failure is explained by
// drift; everything else becomes a 500.
func (h *TaskHandler) recoverListing(c *gin.Context, user *models.User, cause error) {
	reset, err := h.maintenance.RecoverFromQueryError(c.Request.Context(), user.ID, cause)
	if reset {
		if endErr := h.sessions.End(c.Request.Context(), c.Writer, middleware.SessionFrom(c)); endErr != nil {
			h.log.Warn("failed to end session", zap.Error(endErr))
		}
		h.Redirect(c, "/register", session.FlashInfo, "Base de datos reinicializada. Por favor, regístrate nuevamente.")
		return
	}

	h.log.Error("listing failed", zap.Uint("user_id", user.ID), zap.Error(err))
	_ = c.Error(err)
	if errors.Is(err, database.ErrSchemaDrift) {
		h.HTML(c, http.StatusInternalServerError, "500.html", gin.H{"Title": "Error del servidor"}, errorFlash(dbErrorMessage))
		return
	}
	h.ServerError(c)
}

func (h *TaskHandler) CreateForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "crear.html", taskForm{Category: string(models.DefaultCategory)})
}

func (h *TaskHandler) Create(c *gin.Context) {
	user := middleware.UserFrom(c)
	input := bindTaskInput(c)

	_, err := h.taskService.CreateTask(c.Request.Context(), user.ID, input)
	if err != nil {
		message := "Error al crear la tarea"
		if verr, ok := services.IsValidation(err); ok {
			message = verr.Message
		} else {
			h.log.Error("task creation failed", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		h.renderForm(c, http.StatusOK, "crear.html", formFromInput(0, input), errorFlash(message))
		return
	}

	h.Redirect(c, "/", session.FlashSuccess, "Tarea creada exitosamente")
}

func (h *TaskHandler) EditForm(c *gin.Context) {
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), middleware.UserFrom(c).ID, taskID)
	if err != nil {
		h.handleTaskError(c, err, "No tienes permisos para editar esta tarea")
		return
	}
	h.renderForm(c, http.StatusOK, "editar.html", formFromTask(task))
}

func (h *TaskHandler) Edit(c *gin.Context) {
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}
	input := bindTaskInput(c)

	_, err := h.taskService.UpdateTask(c.Request.Context(), middleware.UserFrom(c).ID, taskID, input)
	if err != nil {
		if verr, ok := services.IsValidation(err); ok {
			h.renderForm(c, http.StatusOK, "editar.html", formFromInput(taskID, input), errorFlash(verr.Message))
			return
		}
		h.handleTaskError(c, err, "No tienes permisos para editar esta tarea")
		return
	}

	h.Redirect(c, "/", session.FlashSuccess, "Tarea actualizada exitosamente")
}

func (h *TaskHandler) Toggle(c *gin.Context) {
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.ToggleTask(c.Request.Context(), middleware.UserFrom(c).ID, taskID)
	if err != nil {
		h.handleTaskError(c, err, "No tienes permisos para modificar esta tarea")
		return
	}

	state := "pendiente"
	if task.Completed {
		state = "completada"
	}
	h.Redirect(c, "/", session.FlashSuccess, "Tarea marcada como "+state)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), middleware.UserFrom(c).ID, taskID); err != nil {
		h.handleTaskError(c, err, "No tienes permisos para eliminar esta tarea")
		return
	}
	h.Redirect(c, "/", session.FlashSuccess, "Tarea eliminada exitosamente")
}

func (h *TaskHandler) taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.NotFound(c)
		return 0, false
	}
	return uint(id), true
}

func (h *TaskHandler) renderForm(c *gin.Context, status int, page string, form taskForm, inline ...session.Flash) {
	title := "Nueva tarea"
	if page == "editar.html" {
		title = "Editar tarea"
	}
	h.HTML(c, status, page, gin.H{
		"Title":      title,
		"Form":       form,
		"Categories": categoryOptions(),
	}, inline...)
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error, forbidden string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		h.NotFound(c)
	case errors.Is(err, services.ErrForbidden):
		h.Redirect(c, "/", session.FlashError, forbidden)
	default:
		h.log.Error("task operation failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		h.Redirect(c, "/", session.FlashError, dbErrorMessage)
	}
}

func bindTaskInput(c *gin.Context) services.TaskInput {
	return services.TaskInput{
		Title:       c.PostForm("titulo"),
		Description: c.PostForm("descripcion"),
		DueDate:     c.PostForm("fecha_limite"),
		Category:    c.PostForm("categoria"),
	}
}
