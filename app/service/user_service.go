package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidrelay/app/logger"
	"vidrelay/app/model"

	"gorm.io/gorm"
)

// Setting 可开关的用户设置
type Setting string

const (
	SettingAudioOnly     Setting = "audio_only"
	SettingCompression   Setting = "compression"
	SettingEditMetadata  Setting = "edit_metadata"
	SettingRenameFile    Setting = "rename_file"
	SettingMultiAudio    Setting = "multi_audio"
	SettingBurnSubtitles Setting = "burn_subtitles"
	SettingSendSubtitle  Setting = "send_subtitle"
	SettingSendThumbnail Setting = "send_thumbnail"
	SettingSendPreview   Setting = "send_preview"
)

// Toggles 设置菜单中的开关顺序
var Toggles = []Setting{
	SettingCompression,
	SettingEditMetadata,
	SettingRenameFile,
	SettingMultiAudio,
	SettingBurnSubtitles,
	SettingSendSubtitle,
	SettingSendThumbnail,
	SettingSendPreview,
}

// ErrUnknownSetting 未知的设置项
var ErrUnknownSetting = errors.New("未知的设置项")

func (s Setting) field(u *model.BotUser) (*bool, error) {
	switch s {
	case SettingAudioOnly:
		return &u.AudioOnly, nil
	case SettingCompression:
		return &u.Compression, nil
	case SettingEditMetadata:
		return &u.EditMetadata, nil
	case SettingRenameFile:
		return &u.RenameFile, nil
	case SettingMultiAudio:
		return &u.MultiAudio, nil
	case SettingBurnSubtitles:
		return &u.BurnSubtitles, nil
	case SettingSendSubtitle:
		return &u.SendSubtitle, nil
	case SettingSendThumbnail:
		return &u.SendThumbnail, nil
	case SettingSendPreview:
		return &u.SendPreview, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, s)
	}
}

// Value 读取开关的当前值
func (s Setting) Value(u *model.BotUser) bool {
	p, err := s.field(u)
	if err != nil {
		return false
	}
	return *p
}

// Profile 首次接触时记录的用户资料
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	Language   string
}

// UserService 用户与偏好设置
type UserService struct {
	db          *gorm.DB
	defaultLang string
	logger      *logger.Logger
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB, defaultLang string, log *logger.Logger) *UserService {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return &UserService{
		db:          db,
		defaultLang: defaultLang,
		logger:      log,
	}
}

// Touch 获取或创建用户，并刷新资料与活跃时间
func (s *UserService) Touch(ctx context.Context, p Profile) (*model.BotUser, error) {
	lang := p.Language
	if lang == "" {
		lang = s.defaultLang
	}

	var user model.BotUser
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", p.TelegramID).
		Attrs(*model.NewBotUser(p.TelegramID, lang)).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("获取用户失败: %w", err)
	}

	updates := map[string]any{"last_active": time.Now()}
	if p.Username != "" && p.Username != user.Username {
		updates["username"] = p.Username
	}
	if p.FirstName != "" && p.FirstName != user.FirstName {
		updates["first_name"] = p.FirstName
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		s.logger.Warnf("更新用户资料失败: %d, %v", p.TelegramID, err)
	}
	return &user, nil
}

// Preferences 读取用户设置，不存在时以默认值创建
func (s *UserService) Preferences(ctx context.Context, userID int64) (*model.BotUser, error) {
	var user model.BotUser
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", userID).
		Attrs(*model.NewBotUser(userID, s.defaultLang)).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("读取用户设置失败: %w", err)
	}
	return &user, nil
}

// update 读取、修改并保存用户
func (s *UserService) update(ctx context.Context, userID int64, fn func(u *model.BotUser) error) (*model.BotUser, error) {
	var user model.BotUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("telegram_id = ?", userID).
			Attrs(*model.NewBotUser(userID, s.defaultLang)).
			FirstOrCreate(&user).Error; err != nil {
			return err
		}
		if err := fn(&user); err != nil {
			return err
		}
		// 计数只通过原子表达式修改，保存时排除
		return tx.Omit("active_downloads").Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Toggle 翻转开关并返回新值
func (s *UserService) Toggle(ctx context.Context, userID int64, setting Setting) (bool, error) {
	var value bool
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		p, err := setting.field(u)
		if err != nil {
			return err
		}
		*p = !*p
		value = *p
		return nil
	})
	return value, err
}

// SetLanguage 设置界面语言
func (s *UserService) SetLanguage(ctx context.Context, userID int64, lang string) error {
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		u.Language = lang
		return nil
	})
	return err
}

// SetDefaultQuality 设置默认清晰度，audio 同时打开仅音频
func (s *UserService) SetDefaultQuality(ctx context.Context, userID int64, quality string) error {
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		u.DefaultQuality = quality
		u.AudioOnly = quality == model.QualityAudio
		return nil
	})
	return err
}

// SetUploadFormat 设置上传容器
func (s *UserService) SetUploadFormat(ctx context.Context, userID int64, container string) error {
	switch container {
	case model.ContainerMP4, model.ContainerMKV, model.ContainerWebM:
	default:
		return fmt.Errorf("不支持的容器格式: %s", container)
	}
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		u.UploadFormat = container
		return nil
	})
	return err
}

// SetThumbnail 设置或清除自定义缩略图
func (s *UserService) SetThumbnail(ctx context.Context, userID int64, fileID string) error {
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		u.ThumbnailFileID = fileID
		return nil
	})
	return err
}

// SetBanned 封禁或解封
func (s *UserService) SetBanned(ctx context.Context, userID int64, banned bool) error {
	_, err := s.update(ctx, userID, func(u *model.BotUser) error {
		u.Banned = banned
		return nil
	})
	if err == nil {
		s.logger.Infof("用户封禁状态变更: %d, %v", userID, banned)
	}
	return err
}

// IncrementActive 进行中任务数加一
func (s *UserService) IncrementActive(ctx context.Context, userID int64) error {
	res := s.db.WithContext(ctx).Model(&model.BotUser{}).
		Where("telegram_id = ?", userID).
		UpdateColumn("active_downloads", gorm.Expr("active_downloads + 1"))
	if res.Error != nil {
		return fmt.Errorf("增加进行中任务数失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("用户不存在: %d", userID)
	}
	return nil
}

// DecrementActive 进行中任务数减一，不会小于零
func (s *UserService) DecrementActive(ctx context.Context, userID int64) error {
	err := s.db.WithContext(ctx).Model(&model.BotUser{}).
		Where("telegram_id = ? AND active_downloads > 0", userID).
		UpdateColumn("active_downloads", gorm.Expr("active_downloads - 1")).Error
	if err != nil {
		return fmt.Errorf("减少进行中任务数失败: %w", err)
	}
	return nil
}

// ReconcileActive 以内存中的任务为准重置计数，启动时调用
func (s *UserService) ReconcileActive(ctx context.Context, counts map[int64]int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.BotUser{}).
			Where("active_downloads <> 0").
			UpdateColumn("active_downloads", 0).Error; err != nil {
			return err
		}
		for userID, n := range counts {
			if err := tx.Model(&model.BotUser{}).
				Where("telegram_id = ?", userID).
				UpdateColumn("active_downloads", n).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Count 用户总数
func (s *UserService) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.BotUser{}).Count(&n).Error
	return n, err
}

// BroadcastTargets 未被封禁的全部用户
func (s *UserService) BroadcastTargets(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.BotUser{}).
		Where("banned = ?", false).
		Order("id").
		Pluck("telegram_id", &ids).Error
	return ids, err
}
