package database

import (
	"vidrelay/app/model"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.SystemConfig{},
		&model.BotUser{},
		&model.GlobalStats{},
		&model.DownloadRecord{},
	)
}
