package db

import (
	"backupwiz/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Tenant{},
		&models.SyncStatus{},
		&models.Conversation{},
		&models.Message{},
		&models.MediaFile{},
		&models.CallLog{},
		&models.Recording{},
		&models.Voicemail{},
		&models.Fax{},
		&models.MeetingRecording{},
		&models.Extension{},
		&models.AlertLog{},
	)
}
