package service

import (
	"context"
	"fmt"
	"time"

	"vidrelay/app/model"

	"gorm.io/gorm"
)

// StatsService 全局与用户统计
type StatsService struct {
	db *gorm.DB
}

// NewStatsService 创建统计服务
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// RecordDelivery 在同一事务中写入交付记录并累加全局统计
func (s *StatsService) RecordDelivery(ctx context.Context, rec model.DownloadRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("写入交付记录失败: %w", err)
		}

		res := tx.Model(&model.GlobalStats{}).
			Where("id = ?", model.GlobalStatsID).
			UpdateColumns(map[string]any{
				"total_videos": gorm.Expr("total_videos + 1"),
				"total_bytes":  gorm.Expr("total_bytes + ?", rec.Size),
				"total_millis": gorm.Expr("total_millis + ?", rec.DurationMs),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("更新全局统计失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			row := model.GlobalStats{
				ID:          model.GlobalStatsID,
				TotalVideos: 1,
				TotalBytes:  rec.Size,
				TotalMillis: rec.DurationMs,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("创建全局统计失败: %w", err)
			}
		}

		return tx.Model(&model.BotUser{}).
			Where("telegram_id = ?", rec.UserID).
			UpdateColumn("last_active", time.Now()).Error
	})
}

// Global 读取全局统计
func (s *StatsService) Global(ctx context.Context) (model.GlobalStats, error) {
	var stats model.GlobalStats
	err := s.db.WithContext(ctx).
		Where("id = ?", model.GlobalStatsID).
		Attrs(model.GlobalStats{ID: model.GlobalStatsID}).
		FirstOrInit(&stats).Error
	return stats, err
}

// Activity 单个用户的交付次数、总大小与最近活跃时间
func (s *StatsService) Activity(ctx context.Context, userID int64) (model.UserActivity, error) {
	var act model.UserActivity
	err := s.db.WithContext(ctx).Model(&model.DownloadRecord{}).
		Select("count(*) AS videos, coalesce(sum(size), 0) AS total_bytes").
		Where("user_id = ?", userID).
		Scan(&act).Error
	if err != nil {
		return act, fmt.Errorf("统计用户记录失败: %w", err)
	}

	var user model.BotUser
	err = s.db.WithContext(ctx).Select("last_active").Where("telegram_id = ?", userID).Limit(1).Find(&user).Error
	if err != nil {
		return act, fmt.Errorf("读取用户失败: %w", err)
	}
	act.LastActive = user.LastActive
	return act, nil
}

// Since 某时刻之后的交付次数与总大小
func (s *StatsService) Since(ctx context.Context, t time.Time) (model.UserActivity, error) {
	var act model.UserActivity
	err := s.db.WithContext(ctx).Model(&model.DownloadRecord{}).
		Select("count(*) AS videos, coalesce(sum(size), 0) AS total_bytes").
		Where("created_at >= ?", t).
		Scan(&act).Error
	return act, err
}
