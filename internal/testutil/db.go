// Package testutil opens throwaway SQLite databases for repository and
// service tests.
package testutil

import (
	"path/filepath"
	"testing"

	"docflash-be/internal/model"
	"docflash-be/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.All()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
