package handlers

import (
	"time"

	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/Pilar-d/pendientesd/internal/services"
)

type option struct {
	Value string
	Label string
}

var sortOptions = []option{
	{Value: string(services.SortRecent), Label: "Más recientes"},
	{Value: string(services.SortOldest), Label: "Más antiguas"},
	{Value: string(services.SortTitle), Label: "Título"},
	{Value: string(services.SortDueDate), Label: "Fecha límite"},
}

func categoryOptions() []option {
	options := make([]option, 0, len(models.Categories))
	for _, category := range models.Categories {
		options = append(options, option{Value: string(category), Label: category.Label()})
	}
	return options
}

type taskView struct {
	ID            uint
	Title         string
	Description   string
	Completed     bool
	Category      string
	CategoryLabel string
	DueDate       string
	Overdue       bool
	DaysRemaining *int
	CreatedAt     time.Time
}

func newTaskView(task *models.Task, today time.Time) taskView {
	return taskView{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Completed:     task.Completed,
		Category:      string(task.Category),
		CategoryLabel: task.CategoryLabel(),
		DueDate:       task.DueDateString(),
		Overdue:       task.IsOverdue(today),
		DaysRemaining: task.DaysRemaining(today),
		CreatedAt:     task.CreatedAt,
	}
}

// taskForm echoes create and edit form values back into the page.
type taskForm struct {
	ID          uint
	Title       string
	Description string
	DueDate     string
	Category    string
}

func formFromTask(task *models.Task) taskForm {
	return taskForm{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDateString(),
		Category:    string(task.Category),
	}
}

func formFromInput(id uint, input services.TaskInput) taskForm {
	return taskForm{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Category:    input.Category,
	}
}
