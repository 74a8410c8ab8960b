package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SystemConfigService 运行期配置，目前只有并发上限
type SystemConfigService struct {
	db     *gorm.DB
	gate   *task.Gate
	logger *logger.Logger
}

// NewSystemConfigService 创建系统配置服务
func NewSystemConfigService(db *gorm.DB, gate *task.Gate, log *logger.Logger) *SystemConfigService {
	return &SystemConfigService{
		db:     db,
		gate:   gate,
		logger: log,
	}
}

// Get 读取配置值
func (s *SystemConfigService) Get(ctx context.Context, key string) (string, error) {
	var cfg model.SystemConfig
	if err := s.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.ConfigValue, nil
}

// ConcurrencyLimit 读取并发上限，未设置或非法时返回 fallback
func (s *SystemConfigService) ConcurrencyLimit(ctx context.Context, fallback int) int {
	v, err := s.Get(ctx, model.KeyMaxConcurrentDownloads)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warnf("读取并发上限失败: %v", err)
		}
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		s.logger.Warnf("并发上限配置非法: %q", v)
		return fallback
	}
	return n
}

// ApplyStored 把保存的并发上限应用到准入控制
func (s *SystemConfigService) ApplyStored(ctx context.Context, fallback int) int {
	n := s.ConcurrencyLimit(ctx, fallback)
	s.gate.SetLimit(n)
	return n
}

// SetConcurrencyLimit 保存并立即生效
func (s *SystemConfigService) SetConcurrencyLimit(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("并发上限必须大于 0: %d", n)
	}
	cfg := model.SystemConfig{
		ConfigKey:   model.KeyMaxConcurrentDownloads,
		ConfigValue: strconv.Itoa(n),
		ConfigType:  model.TypeInt,
		Category:    model.CategoryDownload,
		Description: "同时进行的最大任务数",
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_value", "updated_at"}),
	}).Create(&cfg).Error
	if err != nil {
		return fmt.Errorf("保存并发上限失败: %w", err)
	}

	s.gate.SetLimit(n)
	s.logger.Infof("并发上限已调整为 %d", n)
	return nil
}
