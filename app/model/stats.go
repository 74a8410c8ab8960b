package model

import "time"

// GlobalStats 全局统计，仅一行
type GlobalStats struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	TotalVideos int64     `json:"total_videos" gorm:"default:0"`
	TotalBytes  int64     `json:"total_bytes" gorm:"default:0"`
	TotalMillis int64     `json:"total_millis" gorm:"default:0;comment:累计处理耗时(毫秒)"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (GlobalStats) TableName() string {
	return "global_stats"
}

// GlobalStatsID 统计行固定主键
const GlobalStatsID = 1

// DownloadRecord 单次成功交付记录
type DownloadRecord struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	UserID     int64     `json:"user_id" gorm:"index;not null"`
	Title      string    `json:"title" gorm:"size:255"`
	URL        string    `json:"url" gorm:"type:text"`
	Size       int64     `json:"size"`
	DurationMs int64     `json:"duration_ms"`
	AudioOnly  bool      `json:"audio_only"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (DownloadRecord) TableName() string {
	return "download_records"
}

// UserActivity 单个用户的使用情况
type UserActivity struct {
	Videos     int64     `json:"videos"`
	TotalBytes int64     `json:"total_bytes"`
	LastActive time.Time `json:"last_active"`
}
