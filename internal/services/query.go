package services

import (
	"context"
	"strings"
	"time"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/repositories"
)

// SortKey is the value of the listing's orden parameter.
type SortKey string

const (
	SortRecent  SortKey = "recientes"
	SortOldest  SortKey = "antiguas"
	SortTitle   SortKey = "titulo"
	SortDueDate SortKey = "fecha_limite"
)

var sortOrders = map[SortKey]repositories.TaskOrder{
	SortRecent:  repositories.OrderRecent,
	SortOldest:  repositories.OrderOldest,
	SortTitle:   repositories.OrderTitle,
	SortDueDate: repositories.OrderDueDate,
}

// ParseSortKey maps unknown or empty values to SortRecent.
func ParseSortKey(value string) SortKey {
	key := SortKey(value)
	if _, ok := sortOrders[key]; ok {
		return key
	}
	return SortRecent
}

type TaskQuery struct {
	Search   string
	Category string
	Sort     SortKey
}

type TaskStats struct {
	Total     int
	Completed int
	Pending   int
	Overdue   int
}

type TaskListing struct {
	Tasks []models.Task
	Stats TaskStats
	Query TaskQuery
	Today time.Time
}

type TaskQueryService interface {
	ListTasks(ctx context.Context, userID uint, query TaskQuery, today time.Time) (*TaskListing, error)
}

type TaskQueryServiceImpl struct {
	tasks *repositories.TaskRepository
}

func NewTaskQueryService(tasks *repositories.TaskRepository) *TaskQueryServiceImpl {
	return &TaskQueryServiceImpl{tasks: tasks}
}

// ListTasks returns the user's tasks matching query and the statistics over
// that filtered set. today decides which pending tasks are overdue.
func (s *TaskQueryServiceImpl) ListTasks(ctx context.Context, userID uint, query TaskQuery, today time.Time) (*TaskListing, error) {
	query.Search = strings.TrimSpace(query.Search)
	query.Category = strings.TrimSpace(query.Category)
	query.Sort = ParseSortKey(string(query.Sort))

	tasks, err := s.tasks.List(ctx, repositories.TaskFilter{
		UserID:   userID,
		Search:   query.Search,
		Category: query.Category,
		Order:    sortOrders[query.Sort],
	})
	if err != nil {
		return nil, err
	}

	return &TaskListing{
		Tasks: tasks,
		Stats: ComputeStats(tasks, today),
		Query: query,
		Today: models.DateOf(today),
	}, nil
}

func ComputeStats(tasks []models.Task, today time.Time) TaskStats {
	stats := TaskStats{Total: len(tasks)}
	for i := range tasks {
		if tasks[i].Completed {
			stats.Completed++
		} else if tasks[i].IsOverdue(today) {
			stats.Overdue++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}
