// Package testdb opens a migrated sqlite database for package tests.
package testdb

import (
	"path/filepath"
	"testing"

	database "drivingschool_backend/internals/databases"
	"drivingschool_backend/internals/databases/migrations"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, migrations.AutoMigrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}
