package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pilar-d/pendientesd/internal/models"
	"gorm.io/gorm"
)

type TaskOrder int

const (
	OrderRecent TaskOrder = iota
	OrderOldest
	OrderTitle
	OrderDueDate
)

// TaskFilter selects one user's tasks. Empty Search and Category mean no
// filtering on those fields.
type TaskFilter struct {
	UserID   uint
	Search   string
	Category string
	Order    TaskOrder
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", translate(err))
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// UpdateDetails writes the editable fields of task, including a cleared
// due date.
func (r *TaskRepository) UpdateDetails(ctx context.Context, task *models.Task) error {
	err := r.db.WithContext(ctx).Model(task).
		Select("titulo", "descripcion", "categoria", "fecha_limite").
		Updates(task).Error
	if err != nil {
		return fmt.Errorf("update task: %w", translate(err))
	}
	return nil
}

func (r *TaskRepository) SetCompleted(ctx context.Context, task *models.Task, completed bool) error {
	if err := r.db.WithContext(ctx).Model(task).Update("completada", completed).Error; err != nil {
		return fmt.Errorf("set task completion: %w", err)
	}
	task.Completed = completed
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("usuario_id = ?", userID).Count(&count).Error
	return count, err
}

// List runs the listing query: owner scope, case-insensitive substring search
// over title and description, exact category match and the requested order.
// Tasks without a due date sort last under OrderDueDate.
//
// The search is matched in Go on the owner-scoped rows: sqlite's LOWER only
// folds ASCII, so "REVISIÓN" would never match "revisión" in SQL.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := r.db.WithContext(ctx).Where("usuario_id = ?", filter.UserID)

	if filter.Category != "" {
		query = query.Where("categoria = ?", filter.Category)
	}

	switch filter.Order {
	case OrderOldest:
		query = query.Order("creada_en ASC").Order("id ASC")
	case OrderTitle:
		query = query.Order("titulo ASC").Order("id ASC")
	case OrderDueDate:
		query = query.Order("fecha_limite IS NULL").Order("fecha_limite ASC").Order("creada_en DESC")
	default:
		query = query.Order("creada_en DESC").Order("id DESC")
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return matchSearch(tasks, filter.Search), nil
}

// matchSearch keeps tasks whose title or description contains term, ignoring
// case. The input order is preserved.
func matchSearch(tasks []models.Task, term string) []models.Task {
	term = strings.ToLower(term)
	if term == "" {
		return tasks
	}

	matched := tasks[:0]
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Title), term) ||
			strings.Contains(strings.ToLower(task.Description), term) {
			matched = append(matched, task)
		}
	}
	return matched
}
