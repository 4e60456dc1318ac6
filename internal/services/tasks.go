package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTitleLength = 100

// TaskInput holds the raw create and edit form fields.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	Category    string
}

type taskFields struct {
	title       string
	description string
	dueDate     *time.Time
	category    models.Category
}

func (in TaskInput) validate() (taskFields, error) {
	var fields taskFields

	fields.title = strings.TrimSpace(in.Title)
	if fields.title == "" {
		return fields, newValidationError("titulo", "El título es obligatorio")
	}
	if utf8.RuneCountInString(fields.title) > maxTitleLength {
		return fields, newValidationError("titulo", "El título no puede superar 100 caracteres")
	}
	fields.description = strings.TrimSpace(in.Description)

	if raw := strings.TrimSpace(in.DueDate); raw != "" {
		due, err := models.ParseDate(raw)
		if err != nil {
			return fields, newValidationError("fecha_limite", "Formato de fecha incorrecto")
		}
		fields.dueDate = &due
	}

	category, ok := models.ParseCategory(strings.TrimSpace(in.Category))
	if !ok {
		return fields, newValidationError("categoria", "Categoría no válida")
	}
	fields.category = category
	return fields, nil
}

type TaskService interface {
	CreateTask(ctx context.Context, userID uint, input TaskInput) (*models.Task, error)
	GetTask(ctx context.Context, userID, taskID uint) (*models.Task, error)
	UpdateTask(ctx context.Context, userID, taskID uint, input TaskInput) (*models.Task, error)
	ToggleTask(ctx context.Context, userID, taskID uint) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, taskID uint) error
}

type TaskServiceImpl struct {
	db    *gorm.DB
	tasks *repositories.TaskRepository
	authz AuthorizationService
	log   *zap.Logger
}

func NewTaskService(db *gorm.DB, tasks *repositories.TaskRepository, authz AuthorizationService, log *zap.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{db: db, tasks: tasks, authz: authz, log: log}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, userID uint, input TaskInput) (*models.Task, error) {
	fields, err := input.validate()
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       fields.title,
		Description: fields.description,
		DueDate:     fields.dueDate,
		Category:    fields.category,
		UserID:      userID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.tasks.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("task created", zap.Uint("task_id", task.ID), zap.Uint("user_id", userID))
	return task, nil
}

// GetTask returns ErrNotFound for a missing task and ErrForbidden for a task
// owned by someone else.
func (s *TaskServiceImpl) GetTask(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	return s.ownedTask(ctx, s.tasks, userID, taskID)
}

// UpdateTask checks existence and ownership before validating input, so a
// foreign task is refused even when the form is also invalid.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, userID, taskID uint, input TaskInput) (*models.Task, error) {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)

		var err error
		task, err = s.ownedTask(ctx, repo, userID, taskID)
		if err != nil {
			return err
		}

		fields, err := input.validate()
		if err != nil {
			return err
		}

		task.Title = fields.title
		task.Description = fields.description
		task.DueDate = fields.dueDate
		task.Category = fields.category
		return repo.UpdateDetails(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) ToggleTask(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)

		var err error
		task, err = s.ownedTask(ctx, repo, userID, taskID)
		if err != nil {
			return err
		}
		return repo.SetCompleted(ctx, task, !task.Completed)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, userID, taskID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)

		task, err := s.ownedTask(ctx, repo, userID, taskID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, task.ID); err != nil {
			return err
		}
		s.log.Debug("task deleted", zap.Uint("task_id", task.ID), zap.Uint("user_id", userID))
		return nil
	})
}

func (s *TaskServiceImpl) ownedTask(ctx context.Context, repo *repositories.TaskRepository, userID, taskID uint) (*models.Task, error) {
	task, err := repo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}
	if err := s.authz.AuthorizeTask(userID, task); err != nil {
		s.log.Warn("task access refused",
			zap.Uint("task_id", taskID), zap.Uint("owner_id", task.UserID), zap.Uint("user_id", userID))
		return nil, err
	}
	return task, nil
}
