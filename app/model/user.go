package model

import (
	"time"

	"gorm.io/gorm"
)

// 上传容器格式
const (
	ContainerMP4  = "mp4"
	ContainerMKV  = "mkv"
	ContainerWebM = "webm"
)

// 默认清晰度取值
const (
	QualityAsk   = ""      // 每次询问
	QualityBest  = "best"  // 最高清晰度
	QualityAudio = "audio" // 仅音频
)

// BotUser 机器人用户及其偏好设置
type BotUser struct {
	ID              uint           `json:"id" gorm:"primarykey"`
	TelegramID      int64          `json:"telegram_id" gorm:"uniqueIndex;not null;comment:Telegram 用户ID"`
	Username        string         `json:"username" gorm:"size:64"`
	FirstName       string         `json:"first_name" gorm:"size:128"`
	Language        string         `json:"language" gorm:"size:8;default:en"`
	DefaultQuality  string         `json:"default_quality" gorm:"size:16;comment:空表示每次询问"`
	AudioOnly       bool           `json:"audio_only" gorm:"default:false"`
	Compression     bool           `json:"compression" gorm:"default:false"`
	UploadFormat    string         `json:"upload_format" gorm:"size:8;default:mp4"`
	EditMetadata    bool           `json:"edit_metadata" gorm:"default:false"`
	RenameFile      bool           `json:"rename_file" gorm:"default:false"`
	MultiAudio      bool           `json:"multi_audio" gorm:"default:false"`
	BurnSubtitles   bool           `json:"burn_subtitles" gorm:"default:true"`
	SendSubtitle    bool           `json:"send_subtitle" gorm:"default:false"`
	SendThumbnail   bool           `json:"send_thumbnail" gorm:"default:false"`
	SendPreview     bool           `json:"send_preview" gorm:"default:false"`
	ThumbnailFileID string         `json:"thumbnail_file_id" gorm:"size:255;comment:自定义缩略图"`
	Banned          bool           `json:"banned" gorm:"default:false;index"`
	ActiveDownloads int            `json:"active_downloads" gorm:"default:0;comment:进行中的任务数"`
	LastActive      time.Time      `json:"last_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (BotUser) TableName() string {
	return "bot_users"
}

// NewBotUser 以默认偏好创建用户
func NewBotUser(telegramID int64, lang string) *BotUser {
	if lang == "" {
		lang = "en"
	}
	return &BotUser{
		TelegramID:    telegramID,
		Language:      lang,
		UploadFormat:  ContainerMP4,
		BurnSubtitles: true,
		LastActive:    time.Now(),
	}
}

// WantsAudio 是否只下载音频
func (u *BotUser) WantsAudio() bool {
	return u.AudioOnly || u.DefaultQuality == QualityAudio
}

// Container 上传容器，非法取值回落为 mp4
func (u *BotUser) Container() string {
	switch u.UploadFormat {
	case ContainerMP4, ContainerMKV, ContainerWebM:
		return u.UploadFormat
	default:
		return ContainerMP4
	}
}
