// Package db opens the local credential database and runs migrations.
package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reon-protocol/reon-go/pkg/store"
)

// Open initializes the SQLite database at path and runs migrations.
// GORM's own SQL logging stays off; protocol events carry the useful
// signal.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&store.Credential{},
		&store.User{},
		&store.AccessEvent{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	return db, nil
}
