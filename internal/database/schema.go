package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Pilar-d/pendientesd/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSchemaDrift means the task tables exist but lack columns the
// application depends on.
var ErrSchemaDrift = errors.New("schema drift detected")

// taskColumns are the columns of tarea the listing query cannot work without.
var taskColumns = []string{"titulo", "descripcion", "completada", "creada_en", "fecha_limite", "categoria", "usuario_id"}

// State is the outcome of Ensure.
type State int

const (
	StateReady State = iota
	StateCreated
	StateReset
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReset:
		return "reset"
	default:
		return "ready"
	}
}

type ProbeResult struct {
	MissingTables  []string
	MissingColumns []string
}

func (r ProbeResult) Drifted() bool {
	return len(r.MissingTables) == 0 && len(r.MissingColumns) > 0
}

func (r ProbeResult) Healthy() bool {
	return len(r.MissingTables) == 0 && len(r.MissingColumns) == 0
}

type Schema struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSchema(db *gorm.DB, log *zap.Logger) *Schema {
	return &Schema{db: db, log: log}
}

func (s *Schema) models() []interface{} {
	return []interface{}{&models.User{}, &models.Task{}}
}

// Probe inspects the live schema without changing it.
func (s *Schema) Probe(ctx context.Context) (ProbeResult, error) {
	var result ProbeResult
	migrator := s.db.WithContext(ctx).Migrator()

	for _, model := range s.models() {
		if !migrator.HasTable(model) {
			result.MissingTables = append(result.MissingTables, tableName(model))
		}
	}
	if len(result.MissingTables) > 0 {
		return result, nil
	}

	for _, column := range taskColumns {
		if !migrator.HasColumn(&models.Task{}, column) {
			result.MissingColumns = append(result.MissingColumns, column)
		}
	}
	return result, nil
}

// Check returns an error wrapping ErrSchemaDrift when Probe finds missing
// columns or tables.
func (s *Schema) Check(ctx context.Context) error {
	result, err := s.Probe(ctx)
	if err != nil {
		return err
	}
	if result.Healthy() {
		return nil
	}
	return fmt.Errorf("%w: missing tables [%s] missing columns [%s]", ErrSchemaDrift,
		strings.Join(result.MissingTables, ", "), strings.Join(result.MissingColumns, ", "))
}

// Ensure creates missing tables. Drift is repaired by Reset only when
// resetOnDrift is set; otherwise it is returned as ErrSchemaDrift.
func (s *Schema) Ensure(ctx context.Context, resetOnDrift bool) (State, error) {
	result, err := s.Probe(ctx)
	if err != nil {
		return StateReady, err
	}

	switch {
	case result.Healthy():
		s.log.Info("database schema is up to date")
		return StateReady, nil
	case len(result.MissingTables) > 0:
		s.log.Info("creating database schema", zap.Strings("missing_tables", result.MissingTables))
		if err := s.db.WithContext(ctx).AutoMigrate(s.models()...); err != nil {
			return StateReady, fmt.Errorf("create schema: %w", err)
		}
		return StateCreated, nil
	}

	if !resetOnDrift {
		s.log.Error("database schema drift detected, refusing to reset",
			zap.Strings("missing_columns", result.MissingColumns))
		return StateReady, fmt.Errorf("%w: missing columns [%s]", ErrSchemaDrift, strings.Join(result.MissingColumns, ", "))
	}

	if err := s.Reset(ctx, "startup drift: missing "+strings.Join(result.MissingColumns, ",")); err != nil {
		return StateReady, err
	}
	return StateReset, nil
}

// Reset drops every user and task and recreates the tables. It destroys all
// data and cannot be undone.
func (s *Schema) Reset(ctx context.Context, reason string) error {
	s.log.Warn("DESTRUCTIVE: dropping and recreating usuario and tarea tables", zap.String("reason", reason))

	migrator := s.db.WithContext(ctx).Migrator()
	if err := migrator.DropTable(&models.Task{}, &models.User{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(s.models()...); err != nil {
		return fmt.Errorf("recreate tables: %w", err)
	}

	s.log.Warn("schema reset complete, all users and tasks were removed", zap.String("reason", reason))
	return nil
}

func tableName(model interface{}) string {
	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}
	return fmt.Sprintf("%T", model)
}
