package gormstore

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects through dialector with error translation enabled and creates
// or updates the users, sessions and superseded-token tables.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the tables used by both stores.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&userRow{}, &sessionRow{}, &supersededTokenRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
