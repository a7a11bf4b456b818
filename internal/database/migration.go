package database

import (
	"fmt"

	"rentcheck/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.BankTransaction{},
		&models.MatchRecord{},
		&models.RentCharge{},
		&models.SyncAttempt{},
		&models.NotificationRecord{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
