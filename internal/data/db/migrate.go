package db

import (
	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Records()...)
}
