package database

import (
	"strconv"

	"vidrelay/app/config"
	"vidrelay/app/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InitDefaults 写入统计行与并发上限的初始值，已存在时保持不变
func InitDefaults(db *gorm.DB, cfg *config.Config) error {
	return db.Transaction(func(tx *gorm.DB) error {
		stats := model.GlobalStats{ID: model.GlobalStatsID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error; err != nil {
			return err
		}

		limit := model.SystemConfig{
			ConfigKey:   model.KeyMaxConcurrentDownloads,
			ConfigValue: strconv.Itoa(cfg.Download.MaxConcurrent),
			ConfigType:  model.TypeInt,
			Category:    model.CategoryDownload,
			Description: "同时进行的最大任务数",
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "config_key"}},
			DoNothing: true,
		}).Create(&limit).Error
	})
}
