package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fridgecat/fridgecat-go/internal/conf"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return fmt.Errorf("SQLite database path is empty")
	}
	return nil
}

// Open sets up the SQLite database connection and runs migrations
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err // validateSQLiteConfig returns a properly formatted error
	}

	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	absoluteFilePath := filepath.Join(dir, fileName)

	// TranslateError maps driver errors onto gorm.ErrDuplicatedKey and
	// friends, which the insert outcome classification relies on.
	db, err := gorm.Open(sqlite.Open(absoluteFilePath), &gorm.Config{
		Logger:         createGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite ships with foreign key enforcement off
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return fmt.Errorf("failed to enable SQLite foreign keys: %w", err)
	}

	store.DB = db
	return performAutoMigration(db)
}

func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
