package db

import (
	"fmt"

	"github.com/monocle-dev/keywatch/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectDatabase(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return conn, nil
}

// Models lists every table keywatch owns, in dependency order
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Subscription{},
		&models.Monitor{},
		&models.CheckResult{},
		&models.Notification{},
	}
}

// MigrateDatabase creates missing tables and adds missing columns and indexes
func MigrateDatabase(conn *gorm.DB) error {
	for _, model := range Models() {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	return nil
}
