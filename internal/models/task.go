package models

import (
	"time"
)

// DateLayout is the wire format of due dates in forms and query strings.
const DateLayout = "2006-01-02"

type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"column:titulo;size:100;not null"`
	Description string     `json:"description" gorm:"column:descripcion;type:text"`
	Completed   bool       `json:"completed" gorm:"column:completada;default:false"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:creada_en;autoCreateTime"`
	DueDate     *time.Time `json:"due_date,omitempty" gorm:"column:fecha_limite;type:date"`
	Category    Category   `json:"category" gorm:"column:categoria;size:20;default:work"`
	UserID      uint       `json:"user_id" gorm:"column:usuario_id;not null;index"`
}

func (Task) TableName() string {
	return "tarea"
}

func (t *Task) CategoryLabel() string {
	return t.Category.Label()
}

// IsOverdue reports whether a pending task's due date is before today.
func (t *Task) IsOverdue(today time.Time) bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	return DateOf(*t.DueDate).Before(DateOf(today))
}

// DaysRemaining is nil when the task has no due date and negative once the
// due date has passed.
func (t *Task) DaysRemaining(today time.Time) *int {
	if t.DueDate == nil {
		return nil
	}
	days := int(DateOf(*t.DueDate).Sub(DateOf(today)).Hours() / 24)
	return &days
}

func (t *Task) DueDateString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

func (t *Task) String() string {
	return "Task: " + t.Title
}

// DateOf drops the clock part of t, keeping the calendar date it has in its
// own location, and returns it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a date-only value.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}
