package database_test

import (
	"context"
	"testing"

	"github.com/Pilar-d/pendientesd/internal/database"
	"github.com/Pilar-d/pendientesd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	pool, err := database.NewDatabasePool(&database.PoolConfig{DSN: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool.DB
}

// createLegacySchema builds the tables as they looked before due dates and
// categories were added.
func createLegacySchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE usuario (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_active BOOLEAN DEFAULT true,
		is_staff BOOLEAN DEFAULT false,
		is_superuser BOOLEAN DEFAULT false,
		date_joined DATETIME
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE tarea (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		titulo TEXT NOT NULL,
		descripcion TEXT,
		completada BOOLEAN DEFAULT false,
		creada_en DATETIME,
		usuario_id INTEGER NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO usuario (username, password_hash) VALUES ('old', 'x')`).Error)
}

func TestSchema_EnsureCreatesMissingTables(t *testing.T) {
	db := openMemory(t)
	schema := database.NewSchema(db, zap.NewNop())
	ctx := context.Background()

	probe, err := schema.Probe(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"usuario", "tarea"}, probe.MissingTables)

	state, err := schema.Ensure(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, database.StateCreated, state)

	state, err = schema.Ensure(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, database.StateReady, state)
	assert.NoError(t, schema.Check(ctx))
}

func TestSchema_DriftIsReportedWithoutReset(t *testing.T) {
	db := openMemory(t)
	createLegacySchema(t, db)
	schema := database.NewSchema(db, zap.NewNop())
	ctx := context.Background()

	probe, err := schema.Probe(ctx)
	require.NoError(t, err)
	assert.True(t, probe.Drifted())
	assert.ElementsMatch(t, []string{"fecha_limite", "categoria"}, probe.MissingColumns)

	_, err = schema.Ensure(ctx, false)
	require.ErrorIs(t, err, database.ErrSchemaDrift)
	assert.ErrorIs(t, schema.Check(ctx), database.ErrSchemaDrift)

	var users int64
	require.NoError(t, db.Table("usuario").Count(&users).Error)
	assert.Equal(t, int64(1), users, "refusing to reset must keep existing rows")
}

func TestSchema_DriftResetsWhenAllowed(t *testing.T) {
	db := openMemory(t)
	createLegacySchema(t, db)
	schema := database.NewSchema(db, zap.NewNop())
	ctx := context.Background()

	state, err := schema.Ensure(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, database.StateReset, state)
	assert.NoError(t, schema.Check(ctx))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestSchema_ResetDestroysData(t *testing.T) {
	db := openMemory(t)
	schema := database.NewSchema(db, zap.NewNop())
	ctx := context.Background()

	_, err := schema.Ensure(ctx, false)
	require.NoError(t, err)

	user := models.User{Username: "ana", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.Task{Title: "t", Category: models.CategoryWork, UserID: user.ID}).Error)

	require.NoError(t, schema.Reset(ctx, "test"))

	var users, tasks int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Task{}).Count(&tasks).Error)
	assert.Zero(t, users)
	assert.Zero(t, tasks)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", database.StateReady.String())
	assert.Equal(t, "created", database.StateCreated.String())
	assert.Equal(t, "reset", database.StateReset.String())
}
