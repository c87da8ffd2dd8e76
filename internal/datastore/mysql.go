package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/fridgecat/fridgecat-go/internal/conf"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	mysqlConf := settings.Output.MySQL
	if mysqlConf.Host == "" || mysqlConf.Database == "" || mysqlConf.Username == "" {
		return fmt.Errorf("MySQL configuration is incomplete: host, database and username are required")
	}
	return nil
}

// Open sets up the MySQL database connection and runs migrations
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err // validateMySQLConfig returns a properly formatted error
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.Settings.Output.MySQL.Username, store.Settings.Output.MySQL.Password,
		store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port,
		store.Settings.Output.MySQL.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         createGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		logger.Error("Failed to open MySQL database",
			"host", store.Settings.Output.MySQL.Host,
			"port", store.Settings.Output.MySQL.Port,
			"database", store.Settings.Output.MySQL.Database,
			"error", err)
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db)
}

// Close MySQL database connections
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Error("Failed to retrieve generic DB object", "error", err)
		return err
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close MySQL database", "error", err)
		return err
	}
	return nil
}
