package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates the pgvector extension on postgres and then auto-migrates
// the given models.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if db.Dialector.Name() == DriverPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SupportsVectors reports whether similarity queries can run on this connection.
func SupportsVectors(db *gorm.DB) bool {
	return db.Dialector.Name() == DriverPostgres
}
