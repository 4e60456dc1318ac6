package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pilar-d/pendientesd/internal/database"
	"github.com/Pilar-d/pendientesd/internal/models"
	"go.uber.org/zap"
)

// MaintenanceService runs the destructive schema operations. Both paths drop
// every user and task.
type MaintenanceService interface {
	ResetSchema(ctx context.Context, actor *models.User) error
	RecoverFromQueryError(ctx context.Context, userID uint, cause error) (bool, error)
}

type MaintenanceServiceImpl struct {
	schema       *database.Schema
	authz        AuthorizationService
	resetOnDrift bool
	log          *zap.Logger
}

func NewMaintenanceService(schema *database.Schema, authz AuthorizationService, resetOnDrift bool, log *zap.Logger) *MaintenanceServiceImpl {
	return &MaintenanceServiceImpl{schema: schema, authz: authz, resetOnDrift: resetOnDrift, log: log}
}

// ResetSchema drops and recreates the tables on behalf of actor.
func (s *MaintenanceServiceImpl) ResetSchema(ctx context.Context, actor *models.User) error {
	if err := s.authz.AuthorizeSchemaReset(actor); err != nil {
		if actor != nil {
			s.log.Warn("schema reset refused", zap.Uint("user_id", actor.ID))
		}
		return err
	}
	s.log.Warn("schema reset requested", zap.Uint("user_id", actor.ID), zap.String("username", actor.Username))
	return s.schema.Reset(ctx, fmt.Sprintf("requested by user %d", actor.ID))
}

// RecoverFromQueryError probes the schema after a failed listing query. Only
// detected drift leads to a reset, and only when resets on drift are enabled.
// It reports whether the schema was reset; any other failure is returned.
func (s *MaintenanceServiceImpl) RecoverFromQueryError(ctx context.Context, userID uint, cause error) (bool, error) {
	probe, err := s.schema.Probe(ctx)
	if err != nil {
		return false, errors.Join(cause, fmt.Errorf("probe schema: %w", err))
	}
	if probe.Healthy() {
		return false, cause
	}

	if !s.resetOnDrift {
		s.log.Error("listing failed on schema drift, reset disabled",
			zap.Uint("user_id", userID),
			zap.Strings("missing_tables", probe.MissingTables),
			zap.Strings("missing_columns", probe.MissingColumns),
			zap.Error(cause))
		return false, fmt.Errorf("%w: %w", database.ErrSchemaDrift, cause)
	}

	s.log.Warn("listing failed on schema drift, resetting",
		zap.Uint("user_id", userID),
		zap.Strings("missing_tables", probe.MissingTables),
		zap.Strings("missing_columns", probe.MissingColumns),
		zap.Error(cause))
	if err := s.schema.Reset(ctx, fmt.Sprintf("listing drift seen by user %d", userID)); err != nil {
		return false, err
	}
	return true, nil
}
