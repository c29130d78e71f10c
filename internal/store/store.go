package store

import (
	"SafeCircle/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table this service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Participant{},
		&models.Friendship{},
		&models.SosSession{},
		&models.Event{},
		&models.ReminderJob{},
	)
}
